package valueobject

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PercentOf returns part / whole * 100.
// The result is nil when whole is zero, since the ratio is undefined.
func PercentOf(part, whole decimal.Decimal) *decimal.Decimal {
	if whole.IsZero() {
		return nil
	}
	p := part.Mul(hundred).Div(whole)
	return &p
}

// ApplyPercent returns amount * percent / 100
func ApplyPercent(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}
