package groupbuy

import "github.com/shopspring/decimal"

// DiscountedUnitPrice applies pct to unitPriceCents and rounds half up to
// whole minor units. It is computed once per deal so every participant pays
// the same unit price.
func DiscountedUnitPrice(unitPriceCents int64, pct decimal.Decimal) int64 {
	price := decimal.NewFromInt(unitPriceCents).
		Mul(hundredPct.Sub(pct)).
		Div(hundredPct).
		Round(0)
	return price.IntPart()
}
