// Package stats composes fetching, caching and the aggregation engine into one
// request/response operation.
//
// Flow: validate → fetch groups → cache lookup → fetch facts → aggregate →
// summaries → cache store → optional snapshot persist.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"killboard-stats/internal/cache"
	"killboard-stats/internal/domain"
	"killboard-stats/internal/fetch"
	"killboard-stats/internal/idhash"
	"killboard-stats/internal/logging"
	"killboard-stats/internal/metrics"
	"killboard-stats/internal/observability"
	"killboard-stats/internal/retry"
	"killboard-stats/internal/storage"
	"killboard-stats/internal/strategy"
)

// DefaultCacheTTL is used when Options.CacheTTL is zero.
const DefaultCacheTTL = 5 * time.Minute

// Query describes one stats computation.
type Query struct {
	GroupIDs    []string // nil means every known group
	Start       time.Time
	End         time.Time
	Granularity domain.Granularity
	Report      string // strategy name, empty means kills
	TopMetric   domain.TopMetric
	Persist     bool // write a snapshot run when a SnapshotStore is configured
}

// Report is the outcome of a stats computation.
type Report struct {
	RunID     string // set when the result was persisted
	Strategy  string
	Result    *domain.AggregationResult
	Summaries map[string]string // one-line text per group id
	Cached    bool
}

// Options for creating Service.
type Options struct {
	// Required stores
	KillmailStore storage.KillmailStore
	GroupStore    storage.GroupStore

	// Optional
	SnapshotStore storage.SnapshotStore
	Cache         cache.Cache
	CacheTTL      time.Duration
	Retry         *retry.Policy // nil uses retry.DefaultPolicy
	FetchRate     float64       // fact fetches per second, <= 0 means unlimited
	Logger        *log.Logger

	// Engine settings
	Workers            int
	HighValueThreshold *big.Int
	BreakdownLimit     *int
}

// Service answers stats queries.
type Service struct {
	killmails storage.KillmailStore
	groups    fetch.GroupFetcher
	snapshots storage.SnapshotStore
	cache     cache.Cache
	cacheTTL  time.Duration
	policy    retry.Policy
	limiter   *rate.Limiter
	logger    *log.Logger

	engineOpts []metrics.Option
	threshold  string
	now        func() time.Time
}

// New creates a new Service.
func New(opts Options) *Service {
	s := &Service{
		killmails: opts.KillmailStore,
		groups:    fetch.NewStoreGroupFetcher(opts.GroupStore),
		snapshots: opts.SnapshotStore,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		policy:    retry.DefaultPolicy(),
		logger:    opts.Logger,
		now:       time.Now,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if opts.Retry != nil {
		s.policy = *opts.Retry
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if opts.FetchRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.FetchRate), max(1, int(opts.FetchRate)))
	}

	s.engineOpts = append(s.engineOpts, metrics.WithWorkers(opts.Workers))
	if opts.HighValueThreshold != nil {
		s.engineOpts = append(s.engineOpts, metrics.WithHighValueThreshold(opts.HighValueThreshold))
		s.threshold = opts.HighValueThreshold.String()
	}
	if opts.BreakdownLimit != nil {
		s.engineOpts = append(s.engineOpts, metrics.WithBreakdownLimit(*opts.BreakdownLimit))
	}
	return s
}

// IsInvalidQuery reports whether err was caused by the caller's query rather than
// by a failing dependency.
func IsInvalidQuery(err error) bool {
	return errors.Is(err, metrics.ErrInvalidTimeRange) ||
		errors.Is(err, metrics.ErrInvalidGranularity) ||
		errors.Is(err, metrics.ErrInvalidTopMetric) ||
		errors.Is(err, metrics.ErrTooManyBuckets) ||
		errors.Is(err, metrics.ErrDuplicateGroupID) ||
		errors.Is(err, strategy.ErrUnknownStrategy) ||
		errors.Is(err, fetch.ErrUnknownGroup)
}

// Compute runs q end to end.
func (s *Service) Compute(ctx context.Context, q Query) (*Report, error) {
	started := s.now()
	report, err := s.compute(ctx, q)

	name := q.Report
	if report != nil {
		name = report.Strategy
	}
	status := "ok"
	switch {
	case err != nil && IsInvalidQuery(err):
		status = "invalid"
	case err != nil:
		status = "error"
	case report.Cached:
		status = "cached"
	}
	observability.RecordStatsRequest(name, status, s.now().Sub(started))
	return report, err
}

func (s *Service) compute(ctx context.Context, q Query) (*Report, error) {
	strat, err := strategy.FromName(q.Report)
	if err != nil {
		return nil, err
	}

	check := domain.AggregationRequest{Start: q.Start, End: q.End, Granularity: q.Granularity, TopMetric: q.TopMetric}
	if err := metrics.Validate(&check); err != nil {
		return nil, err
	}

	var groups []domain.Group
	err = retry.Do(ctx, s.retryPolicy("groups"), func() error {
		var ferr error
		groups, ferr = s.groups.FetchGroups(ctx, q.GroupIDs)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch groups: %w", err)
	}

	key := idhash.ComputeRequestKey(idhash.RequestKey{
		Report:      strat.ID(),
		Groups:      groups,
		Start:       q.Start,
		End:         q.End,
		Granularity: q.Granularity,
		TopMetric:   q.TopMetric,
		Threshold:   s.threshold,
	})
	if cached, ok := s.lookup(key); ok {
		return s.finish(ctx, q, cached)
	}

	facts, err := s.fetchFacts(ctx, strat, groups, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	engine := metrics.NewEngine(append(s.engineOpts, metrics.WithClassifier(strat.Classify))...)
	result, err := engine.Aggregate(domain.AggregationRequest{
		Facts:       facts,
		Groups:      groups,
		Start:       q.Start,
		End:         q.End,
		Granularity: q.Granularity,
		TopMetric:   q.TopMetric,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	s.logWarnings(strat.ID(), result.Warnings)
	observability.RecordFactsAttributed(result.Summary.GrandUniqueFactCount)

	report := &Report{
		Strategy:  strat.ID(),
		Result:    result,
		Summaries: make(map[string]string, len(result.Groups)),
	}
	for i := range result.Groups {
		report.Summaries[result.Groups[i].GroupID] = strat.Summarize(&result.Groups[i])
	}

	if s.cache != nil {
		s.cache.Set(key, report, s.cacheTTL)
	}

	s.logger.Debug("stats computed",
		"report", report.Strategy,
		"groups", len(result.Groups),
		"facts", len(facts),
		"unique", result.Summary.GrandUniqueFactCount)

	return s.finish(ctx, q, report)
}

// lookup returns a copy of a cached report flagged as cached.
func (s *Service) lookup(key string) (*Report, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	observability.RecordCacheLookup(ok)
	if !ok {
		return nil, false
	}
	r, ok := v.(*Report)
	if !ok {
		return nil, false
	}
	cp := *r
	cp.Cached = true
	cp.RunID = ""
	return &cp, true
}

// finish persists the report when asked. The cached copy never carries a run id.
func (s *Service) finish(ctx context.Context, q Query, r *Report) (*Report, error) {
	if !q.Persist || s.snapshots == nil {
		return r, nil
	}

	out := *r
	runID, err := s.persist(ctx, &out)
	if err != nil {
		return nil, err
	}
	out.RunID = runID
	return &out, nil
}

func (s *Service) fetchFacts(ctx context.Context, strat strategy.Strategy, groups []domain.Group, start, end time.Time) ([]domain.Fact, error) {
	members := fetch.MemberIDs(groups)
	if len(members) == 0 {
		return nil, nil
	}

	var fetcher fetch.FactFetcher = fetch.NewStoreFactFetcher(s.killmails, strat)
	if s.limiter != nil {
		fetcher = fetch.NewLimitedFactFetcher(fetcher, s.limiter)
	}

	var facts []domain.Fact
	err := retry.Do(ctx, s.retryPolicy("facts"), func() error {
		var ferr error
		facts, ferr = fetcher.FetchFacts(ctx, members, start, end)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch facts: %w", err)
	}
	return facts, nil
}

func (s *Service) retryPolicy(source string) retry.Policy {
	p := s.policy
	next := p.OnRetry
	p.OnRetry = func(err error, wait time.Duration) {
		observability.RecordFetchRetry(source)
		s.logger.Warn("fetch failed, retrying", "source", source, "wait", wait, "err", err)
		if next != nil {
			next(err, wait)
		}
	}
	return p
}

func (s *Service) logWarnings(report string, warnings []domain.Warning) {
	for _, w := range warnings {
		observability.RecordWarning(w.Code)
		s.logger.Warn("data warning", "report", report, "code", w.Code, "fact", w.FactKey, "detail", w.Detail)
	}
}

// persist writes one snapshot row per group and bucket under a fresh run id.
func (s *Service) persist(ctx context.Context, r *Report) (string, error) {
	runID := uuid.NewString()
	computedAt := s.now().UTC()

	var rows []*domain.SnapshotRow
	for _, g := range r.Result.Groups {
		for _, p := range g.TimeSeries {
			rows = append(rows, &domain.SnapshotRow{
				RunID:       runID,
				Report:      r.Strategy,
				GroupID:     g.GroupID,
				Granularity: r.Result.Granularity,
				BucketStart: p.BucketStart,
				FactCount:   p.Count,
				Value:       p.Value,
				Trend:       g.Trend,
				ComputedAt:  computedAt,
			})
		}
	}
	if len(rows) == 0 {
		return runID, nil
	}

	if err := s.snapshots.InsertBulk(ctx, rows); err != nil {
		return "", fmt.Errorf("persist snapshots: %w", err)
	}
	observability.RecordSnapshotsPersisted(len(rows))
	return runID, nil
}
