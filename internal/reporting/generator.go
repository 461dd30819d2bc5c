package reporting

import (
	"context"
	"fmt"
	"time"

	"killboard-stats/internal/stats"
)

// Computer answers stats queries. Implemented by *stats.Service.
type Computer interface {
	Compute(ctx context.Context, q stats.Query) (*stats.Report, error)
}

// Generator produces reports from stats computations.
type Generator struct {
	stats Computer
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(c Computer) *Generator {
	return &Generator{
		stats: c,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate runs q and converts the outcome into a Report.
func (g *Generator) Generate(ctx context.Context, q stats.Query) (*Report, error) {
	res, err := g.stats.Compute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}
	return Build(res, g.now()), nil
}

// Build converts a stats report into a Report without further computation.
func Build(sr *stats.Report, generatedAt time.Time) *Report {
	res := sr.Result
	r := &Report{
		GeneratedAt: generatedAt,
		Strategy:    sr.Strategy,
		Start:       res.Start,
		End:         res.End,
		Granularity: res.Granularity,
		RunID:       sr.RunID,
		Summary: SummarySection{
			GroupCount:           len(res.Groups),
			GrandTotalCount:      res.Summary.GrandTotalCount,
			GrandUniqueFactCount: res.Summary.GrandUniqueFactCount,
			GrandTotalValue:      res.Summary.GrandTotalValue,
			TopMetric:            res.Summary.TopPerformerMetric,
		},
	}

	for _, gr := range res.Groups {
		if gr.GroupID == res.Summary.TopPerformerGroupID {
			r.Summary.TopPerformer = gr.DisplayName
		}

		row := GroupRow{
			GroupID:     gr.GroupID,
			DisplayName: gr.DisplayName,
			UniqueFacts: gr.UniqueFactCount,
			Solo:        gr.SoloCount,
			GroupSolo:   gr.GroupSoloCount,
			HighValue:   gr.HighValueCount,
			TotalValue:  gr.TotalValue,
			Trend:       gr.Trend,
			Summary:     sr.Summaries[gr.GroupID],
		}
		for _, p := range gr.TimeSeries {
			if p.Count > 0 {
				row.BucketsWithAny++
			}
			r.Series = append(r.Series, SeriesRow{
				GroupID:     gr.GroupID,
				BucketStart: p.BucketStart,
				Count:       p.Count,
				Value:       p.Value,
			})
		}
		for _, d := range gr.Breakdown {
			r.Breakdown = append(r.Breakdown, BreakdownRow{
				GroupID:   gr.GroupID,
				Dimension: d.Dimension,
				Count:     d.Count,
				Value:     d.Value,
			})
		}
		r.Groups = append(r.Groups, row)
	}

	for _, w := range res.Warnings {
		r.Warnings = append(r.Warnings, WarningRow{Code: w.Code, FactKey: w.FactKey, Detail: w.Detail})
	}
	return r
}
