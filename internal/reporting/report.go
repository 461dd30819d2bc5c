package reporting

import (
	"math/big"
	"time"

	"killboard-stats/internal/domain"
)

// Report is the rendered-ready form of one stats computation.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Strategy    string
	Start       time.Time
	End         time.Time
	Granularity domain.Granularity
	RunID       string

	// Cross-group totals
	Summary SummarySection

	// Per group, in request order
	Groups []GroupRow

	// Time series (group order, then bucket order)
	Series []SeriesRow

	// Top dimensions per group
	Breakdown []BreakdownRow

	// Data warnings raised while aggregating
	Warnings []WarningRow
}

// SummarySection contains cross-group totals.
type SummarySection struct {
	GroupCount           int
	GrandTotalCount      int
	GrandUniqueFactCount int
	GrandTotalValue      *big.Int
	TopPerformer         string // display name, empty when there are no groups
	TopMetric            domain.TopMetric
}

// GroupRow represents one row in the group table.
type GroupRow struct {
	GroupID        string
	DisplayName    string
	UniqueFacts    int
	Solo           int
	GroupSolo      int
	HighValue      int
	TotalValue     *big.Int
	Trend          domain.Trend
	Summary        string // strategy one-liner
	BucketsWithAny int
}

// SeriesRow is one bucket of one group.
type SeriesRow struct {
	GroupID     string
	BucketStart time.Time
	Count       int
	Value       *big.Int
}

// BreakdownRow is one dimension of one group.
type BreakdownRow struct {
	GroupID   string
	Dimension string
	Count     int
	Value     *big.Int
}

// WarningRow lists one data warning.
type WarningRow struct {
	Code    string
	FactKey string
	Detail  string
}

func valueString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
