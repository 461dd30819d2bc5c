package domain

import (
	"math/big"
	"time"
)

// AggregationRequest is one engine invocation over an immutable snapshot.
type AggregationRequest struct {
	Facts              []Fact
	Groups             []Group
	Start              time.Time // inclusive
	End                time.Time // exclusive
	Granularity        Granularity
	HighValueThreshold *big.Int  // nil uses the engine default
	TopMetric          TopMetric // empty uses TopByValue
}

// SeriesPoint is one bucket of a group's time series.
type SeriesPoint struct {
	BucketStart  time.Time
	Count        int
	Value        *big.Int
	ValueFloat   float64 // chart-friendly copy of Value
	ValueClamped bool    // ValueFloat hit the float64 range limit
}

// DimensionCount is one row of a per-group breakdown.
type DimensionCount struct {
	Dimension string
	Count     int
	Value     *big.Int
}

// GroupResult holds all aggregates for one group.
type GroupResult struct {
	GroupID         string
	DisplayName     string
	UniqueFactCount int
	SoloCount       int // TrueSolo + GroupSolo
	GroupSoloCount  int
	HighValueCount  int
	TotalValue      *big.Int
	TimeSeries      []SeriesPoint
	Trend           Trend
	Breakdown       []DimensionCount

	// FactKeys lists attributed facts in first-seen order.
	FactKeys []string
	// Classifications maps fact key to its label for this group.
	Classifications map[string]Classification
}

// CrossGroupSummary holds totals across all groups of a request.
type CrossGroupSummary struct {
	GrandTotalCount      int // plain sum of per-group unique counts
	GrandUniqueFactCount int // distinct facts attributed to at least one group
	GrandTotalValue      *big.Int
	TopPerformerGroupID  string
	TopPerformerMetric   TopMetric
}

// AggregationResult is the engine output.
type AggregationResult struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
	Groups      []GroupResult // same order as the request groups
	Summary     CrossGroupSummary
	Warnings    []Warning
}

// SnapshotRow is one persisted time series bucket of a computed result.
// Corresponds to group_stat_snapshots table in ClickHouse.
type SnapshotRow struct {
	RunID       string
	Report      string
	GroupID     string
	Granularity Granularity
	BucketStart time.Time
	FactCount   int
	Value       *big.Int
	Trend       Trend
	ComputedAt  time.Time
}
