// Package trend labels the direction of a numeric series.
package trend

import "killboard-stats/internal/domain"

// Slope thresholds are absolute, not normalized by series magnitude.
const (
	IncreasingThreshold = 0.05
	DecreasingThreshold = -0.05

	// MinPoints is the shortest series that gets a regression.
	MinPoints = 3
)

// Estimate returns the trend of series using the ordinary least-squares slope
// of series[i] against i. Series shorter than MinPoints are stable.
func Estimate(series []float64) domain.Trend {
	if len(series) < MinPoints {
		return domain.TrendStable
	}

	m := Slope(series)
	switch {
	case m > IncreasingThreshold:
		return domain.TrendIncreasing
	case m < DecreasingThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// Slope computes the OLS slope of series against its 0-based index.
// Returns 0 for fewer than two points.
func Slope(series []float64) float64 {
	n := len(series)
	if n < 2 {
		return 0
	}

	// x = 0..n-1, mean of x is (n-1)/2
	meanX := float64(n-1) / 2
	meanY := 0.0
	for _, y := range series {
		meanY += y
	}
	meanY /= float64(n)

	var num, den float64
	for i, y := range series {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// EstimateCounts is Estimate over integer counts.
func EstimateCounts(counts []int) domain.Trend {
	series := make([]float64, len(counts))
	for i, c := range counts {
		series[i] = float64(c)
	}
	return Estimate(series)
}
