package domain

import "time"

// Granularity is the width of a time bucket.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// WeekStart is the weekday every week bucket starts on, system wide.
const WeekStart = time.Monday

// IsValid checks if the granularity is supported.
func (g Granularity) IsValid() bool {
	return g == GranularityHour || g == GranularityDay || g == GranularityWeek
}

// String returns the string representation of Granularity.
func (g Granularity) String() string {
	return string(g)
}

// Classification labels a fact's participant structure relative to a group.
type Classification string

const (
	TrueSolo   Classification = "TRUE_SOLO"
	GroupSolo  Classification = "GROUP_SOLO"
	MultiParty Classification = "MULTI_PARTY"
)

// IsSolo reports whether the classification counts toward solo totals.
func (c Classification) IsSolo() bool {
	return c == TrueSolo || c == GroupSolo
}

// Trend is a qualitative direction of a time series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// TopMetric selects the metric used to pick the top performing group.
type TopMetric string

const (
	TopByValue TopMetric = "value"
	TopByCount TopMetric = "count"
	TopBySolo  TopMetric = "solo"
)

// IsValid checks if the metric is supported. Empty means the default (value).
func (m TopMetric) IsValid() bool {
	return m == "" || m == TopByValue || m == TopByCount || m == TopBySolo
}
