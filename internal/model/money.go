package model

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a unit or line price to two decimals (half away from zero).
// 372.4000000001 → 372.4, 2.675 → 2.68
func RoundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatPrice renders a price with exactly two decimals: 372.4 → "372.40".
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// PercentOf returns part/whole as a whole-number percentage, rounded.
// Returns 0 when whole is zero.
func PercentOf(part, whole float64) int {
	if whole == 0 {
		return 0
	}
	pct := decimal.NewFromFloat(part).Div(decimal.NewFromFloat(whole)).Mul(decimal.NewFromInt(100))
	return int(pct.Round(0).IntPart())
}
