package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// ReportScale is the number of decimal places reported for rates and means.
const ReportScale int32 = 2

// Round2 rounds v half away from zero to ReportScale places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(ReportScale).InexactFloat64()
}

// Ratio returns num/den*scale rounded to ReportScale places, or nil when den
// is zero. Every ratio in a result goes through here so the zero-denominator
// convention (null) is the same everywhere.
func Ratio(num, den, scale decimal.Decimal) *float64 {
	if den.IsZero() {
		return nil
	}
	v := num.Div(den).Mul(scale).Round(ReportScale).InexactFloat64()
	return &v
}

// Mean returns sum/n rounded, or nil when n is zero.
func Mean(sum decimal.Decimal, n int) *float64 {
	return Ratio(sum, decimal.NewFromInt(int64(n)), decimal.NewFromInt(1))
}

// Hundred is the percentage scale.
var Hundred = decimal.NewFromInt(100)

// Float returns a pointer to a rounded copy of v.
func Float(v float64) *float64 {
	r := Round2(v)
	return &r
}
