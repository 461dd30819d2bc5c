// Package metrics aggregates attributed facts into per-group and cross-group statistics.
package metrics

import (
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"killboard-stats/internal/attribution"
	"killboard-stats/internal/classify"
	"killboard-stats/internal/domain"
	"killboard-stats/internal/timebucket"
)

var (
	// ErrInvalidTimeRange is returned when start is not before end.
	ErrInvalidTimeRange = errors.New("invalid time range: start must be before end")
	// ErrInvalidGranularity is returned for an unknown bucket granularity.
	ErrInvalidGranularity = errors.New("invalid granularity")
	// ErrInvalidTopMetric is returned for an unknown top performer metric.
	ErrInvalidTopMetric = errors.New("invalid top metric")
	// ErrDuplicateGroupID is returned when two groups in one request share an id.
	ErrDuplicateGroupID = errors.New("duplicate group id")
	// ErrNegativeThreshold is returned when the high value threshold is negative.
	ErrNegativeThreshold = errors.New("negative high value threshold")
	// ErrTooManyBuckets is returned when the window needs more than timebucket.MaxBuckets buckets.
	ErrTooManyBuckets = timebucket.ErrTooManyBuckets
)

// ClassifyFunc labels a fact relative to a group's member set.
type ClassifyFunc func(f *domain.Fact, members map[int64]struct{}) domain.Classification

// Engine is the attribution and aggregation engine. It is stateless between calls
// and safe for concurrent use.
type Engine struct {
	workers        int
	threshold      *big.Int
	classifier     ClassifyFunc
	breakdownLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers limits how many groups are computed concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithHighValueThreshold sets the default high value threshold.
func WithHighValueThreshold(v *big.Int) Option {
	return func(e *Engine) {
		if v != nil && v.Sign() >= 0 {
			e.threshold = new(big.Int).Set(v)
		}
	}
}

// WithClassifier replaces the participant-structure classifier.
func WithClassifier(fn ClassifyFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.classifier = fn
		}
	}
}

// WithBreakdownLimit caps dimension breakdown rows per group. Zero means unlimited.
func WithBreakdownLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.breakdownLimit = n
		}
	}
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers:        runtime.GOMAXPROCS(0),
		threshold:      DefaultHighValueThreshold,
		classifier:     classify.Classify,
		breakdownLimit: DefaultBreakdownLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks a request without computing anything.
func Validate(req *domain.AggregationRequest) error {
	if !req.Start.Before(req.End) {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidTimeRange, req.Start.UTC(), req.End.UTC())
	}
	if !req.Granularity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, req.Granularity)
	}
	if err := timebucket.CheckLimit(req.Start, req.End, req.Granularity); err != nil {
		return err
	}
	if !req.TopMetric.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopMetric, req.TopMetric)
	}
	if req.HighValueThreshold != nil && req.HighValueThreshold.Sign() < 0 {
		return ErrNegativeThreshold
	}

	ids := make(map[string]struct{}, len(req.Groups))
	for i := range req.Groups {
		id := req.Groups[i].ID
		if _, ok := ids[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateGroupID, id)
		}
		ids[id] = struct{}{}
	}
	return nil
}

// Aggregate computes per-group statistics and the cross-group summary.
// Invalid requests return an error and no partial result.
func (e *Engine) Aggregate(req domain.AggregationRequest) (*domain.AggregationResult, error) {
	if err := Validate(&req); err != nil {
		return nil, err
	}

	threshold := e.threshold
	if req.HighValueThreshold != nil {
		threshold = req.HighValueThreshold
	}

	facts, warnings := sanitize(req.Facts, req.Start, req.End)
	attr := attribution.Attribute(facts, req.Groups)
	warnings = append(warnings, attr.Warnings...)

	results := make([]domain.GroupResult, len(req.Groups))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for gi := range req.Groups {
		gi := gi
		g.Go(func() error {
			res, err := e.computeGroup(&req, gi, attr, threshold)
			if err != nil {
				return fmt.Errorf("compute group %s: %w", req.Groups[gi].ID, err)
			}
			results[gi] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.AggregationResult{
		Start:       req.Start,
		End:         req.End,
		Granularity: req.Granularity,
		Groups:      results,
		Summary:     Summarize(results, attr.DistinctFacts(), req.TopMetric),
		Warnings:    warnings,
	}, nil
}

// computeGroup builds the result for group position gi. It only reads shared state.
func (e *Engine) computeGroup(req *domain.AggregationRequest, gi int, attr *attribution.Attribution, threshold *big.Int) (domain.GroupResult, error) {
	group := &req.Groups[gi]
	facts := attr.Facts(gi)
	members := group.MemberSet()

	classes := make([]domain.Classification, len(facts))
	for i := range facts {
		classes[i] = e.classifier(&facts[i], members)
	}

	buckets, err := timebucket.Partition(req.Start, req.End, req.Granularity, facts)
	if err != nil {
		return domain.GroupResult{}, err
	}

	return buildGroupResult(groupInput{
		group:           group,
		facts:           facts,
		classifications: classes,
		buckets:         buckets,
		threshold:       threshold,
		breakdownLimit:  e.breakdownLimit,
	}), nil
}

// sanitize drops facts outside [start, end), facts with negative values and repeated keys.
// The first occurrence of a key wins.
func sanitize(facts []domain.Fact, start, end time.Time) ([]domain.Fact, []domain.Warning) {
	var warnings []domain.Warning
	out := make([]domain.Fact, 0, len(facts))
	seen := make(map[string]struct{}, len(facts))

	for i := range facts {
		f := facts[i]
		if !timebucket.InRange(f.Timestamp, start, end) {
			continue
		}
		if f.Value != nil && f.Value.Sign() < 0 {
			warnings = append(warnings, domain.Warning{
				FactKey: f.Key,
				Code:    domain.WarnNegativeValue,
				Detail:  fmt.Sprintf("negative value %s skipped", f.Value),
			})
			continue
		}
		if _, ok := seen[f.Key]; ok {
			warnings = append(warnings, domain.Warning{
				FactKey: f.Key,
				Code:    domain.WarnDuplicateFactKey,
				Detail:  "repeated fact key, first occurrence kept",
			})
			continue
		}
		seen[f.Key] = struct{}{}
		out = append(out, f)
	}
	return out, warnings
}
