// Package numeric holds the rounding and clamping rules every derived field goes through.
package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds x to two decimals, half away from zero, using the shortest
// decimal representation of x. Non-finite input yields 0.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	v := decimal.NewFromFloat(x).Round(2).InexactFloat64()
	if v == 0 {
		// normalise -0
		return 0
	}
	return v
}

// ClampPercent2 rounds x to two decimals and clamps it into [0, 100].
func ClampPercent2(x float64) float64 {
	return math.Max(0, math.Min(100, Round2(x)))
}

// FloorNonNegativeInt truncates x toward zero and floors negative results to 0.
func FloorNonNegativeInt(x float64) int {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return 0
	}
	if x >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(math.Trunc(x))
}
