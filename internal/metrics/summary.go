package metrics

import (
	"math/big"
	"sort"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/timebucket"
	"killboard-stats/internal/trend"
)

// DefaultHighValueThreshold is the value at or above which a fact counts as high value (1B ISK).
var DefaultHighValueThreshold = big.NewInt(1_000_000_000)

// DefaultBreakdownLimit caps per-group dimension rows.
const DefaultBreakdownLimit = 10

// groupInput is everything needed to summarize one group. It is owned by a single
// goroutine for the duration of the computation.
type groupInput struct {
	group           *domain.Group
	facts           []domain.Fact
	classifications []domain.Classification // parallel to facts
	buckets         []timebucket.Bucket
	threshold       *big.Int
	breakdownLimit  int
}

// buildGroupResult computes counts, totals, series, trend and breakdown for one group.
func buildGroupResult(in groupInput) domain.GroupResult {
	res := domain.GroupResult{
		GroupID:         in.group.ID,
		DisplayName:     in.group.Name(),
		UniqueFactCount: len(in.facts),
		TotalValue:      new(big.Int),
		FactKeys:        make([]string, len(in.facts)),
		Classifications: make(map[string]domain.Classification, len(in.facts)),
	}

	for i := range in.facts {
		f := &in.facts[i]
		class := in.classifications[i]

		res.FactKeys[i] = f.Key
		res.Classifications[f.Key] = class
		if class.IsSolo() {
			res.SoloCount++
		}
		if class == domain.GroupSolo {
			res.GroupSoloCount++
		}

		v := f.ValueOrZero()
		res.TotalValue.Add(res.TotalValue, v)
		if v.Cmp(in.threshold) >= 0 {
			res.HighValueCount++
		}
	}

	res.TimeSeries, res.Trend = buildSeries(in.buckets)
	res.Breakdown = buildBreakdown(in.facts, in.breakdownLimit)

	return res
}

// buildSeries turns buckets into series points and estimates the count trend.
func buildSeries(buckets []timebucket.Bucket) ([]domain.SeriesPoint, domain.Trend) {
	points := make([]domain.SeriesPoint, len(buckets))
	counts := make([]int, len(buckets))

	for i, b := range buckets {
		sum := new(big.Int)
		for j := range b.Facts {
			sum.Add(sum, b.Facts[j].ValueOrZero())
		}
		f, clamped := ToFloat64(sum)
		points[i] = domain.SeriesPoint{
			BucketStart:  b.Start,
			Count:        len(b.Facts),
			Value:        sum,
			ValueFloat:   f,
			ValueClamped: clamped,
		}
		counts[i] = len(b.Facts)
	}

	return points, trend.EstimateCounts(counts)
}

// buildBreakdown counts facts per non-empty dimension, largest first.
// Ties are ordered by value DESC, then dimension ASC.
func buildBreakdown(facts []domain.Fact, limit int) []domain.DimensionCount {
	byDim := make(map[string]*domain.DimensionCount)
	for i := range facts {
		dim := facts[i].Dimension
		if dim == "" {
			continue
		}
		row, ok := byDim[dim]
		if !ok {
			row = &domain.DimensionCount{Dimension: dim, Value: new(big.Int)}
			byDim[dim] = row
		}
		row.Count++
		row.Value.Add(row.Value, facts[i].ValueOrZero())
	}
	if len(byDim) == 0 {
		return nil
	}

	rows := make([]domain.DimensionCount, 0, len(byDim))
	for _, row := range byDim {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if c := rows[i].Value.Cmp(rows[j].Value); c != 0 {
			return c > 0
		}
		return rows[i].Dimension < rows[j].Dimension
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Summarize builds cross-group totals. Totals are plain sums over groups, so a
// fact shared by two groups counts twice in GrandTotalCount; distinctFacts
// carries the de-duplicated figure.
func Summarize(results []domain.GroupResult, distinctFacts int, metric domain.TopMetric) domain.CrossGroupSummary {
	if metric == "" {
		metric = domain.TopByValue
	}

	s := domain.CrossGroupSummary{
		GrandUniqueFactCount: distinctFacts,
		GrandTotalValue:      new(big.Int),
		TopPerformerMetric:   metric,
	}
	for i := range results {
		s.GrandTotalCount += results[i].UniqueFactCount
		if results[i].TotalValue != nil {
			s.GrandTotalValue.Add(s.GrandTotalValue, results[i].TotalValue)
		}
	}
	s.TopPerformerGroupID = TopPerformer(results, metric)
	return s
}

// TopPerformer returns the id of the group with the highest metric.
// Comparison is strict greater-than, so on ties the earliest group wins.
// Returns "" when results is empty.
func TopPerformer(results []domain.GroupResult, metric domain.TopMetric) string {
	best := -1
	for i := range results {
		if best < 0 || better(&results[i], &results[best], metric) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return results[best].GroupID
}

// better reports whether a strictly beats b on metric.
func better(a, b *domain.GroupResult, metric domain.TopMetric) bool {
	switch metric {
	case domain.TopByCount:
		return a.UniqueFactCount > b.UniqueFactCount
	case domain.TopBySolo:
		return a.SoloCount > b.SoloCount
	default:
		return valueOf(a).Cmp(valueOf(b)) > 0
	}
}

func valueOf(r *domain.GroupResult) *big.Int {
	if r.TotalValue == nil {
		return new(big.Int)
	}
	return r.TotalValue
}
