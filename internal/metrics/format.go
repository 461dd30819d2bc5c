package metrics

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// valueScale is one display suffix: values >= 10^exp are shown divided by 10^exp.
type valueScale struct {
	exp    int32
	suffix string
	places int32
}

// Ordered from smallest to largest. Values past the last scale stay in it.
var valueScales = []valueScale{
	{exp: 3, suffix: "K", places: 1},
	{exp: 6, suffix: "M", places: 2},
	{exp: 9, suffix: "B", places: 2},
	{exp: 12, suffix: "T", places: 2},
}

var (
	thousand    = big.NewInt(1000)
	decThousand = decimal.NewFromInt(1000)
)

// FormatValue renders an ISK-like magnitude for display.
//
//	0          -> "0"
//	999        -> "999"
//	1500       -> "1.5K"
//	2500000000 -> "2.50B"
//
// Arithmetic stays exact until the final string; a mantissa that rounds up to
// 1000 moves to the next suffix. Sign is preserved.
func FormatValue(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}

	abs := new(big.Int).Abs(v)
	if abs.Cmp(thousand) < 0 {
		return v.String()
	}

	d := decimal.NewFromBigInt(abs, 0)
	i := len(valueScales) - 1
	for i > 0 && d.LessThan(decimal.New(1, valueScales[i].exp)) {
		i--
	}

	for {
		s := valueScales[i]
		m := d.Shift(-s.exp).Round(s.places)
		if m.GreaterThanOrEqual(decThousand) && i < len(valueScales)-1 {
			i++
			continue
		}
		out := m.StringFixed(s.places) + s.suffix
		if v.Sign() < 0 {
			out = "-" + out
		}
		return out
	}
}

// ToFloat64 converts v for chart consumers. Magnitudes beyond the float64 range
// are clamped to ±math.MaxFloat64 and reported with clamped=true.
func ToFloat64(v *big.Int) (f float64, clamped bool) {
	if v == nil {
		return 0, false
	}
	f, _ = new(big.Float).SetInt(v).Float64()
	switch {
	case math.IsInf(f, 1):
		return math.MaxFloat64, true
	case math.IsInf(f, -1):
		return -math.MaxFloat64, true
	}
	return f, false
}
