// Package pricing computes the effective unit price of a catalog
// product or variant. All amounts are quantized to two decimal places,
// rounding half up.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
)

// Inputs is the immutable pricing view of one sellable unit. Variants
// carry their own price fields but share the product's discount window
// and percentage.
type Inputs struct {
	BasePrice          decimal.Decimal
	DiscountedPrice    decimal.Decimal
	DiscountPercentage decimal.Decimal
	DiscountStart      *time.Time
	DiscountEnd        *time.Time
}

func ForProduct(p catalog.Product) Inputs {
	return Inputs{
		BasePrice:          Amount(p.Price),
		DiscountedPrice:    Amount(p.DiscountedPrice),
		DiscountPercentage: decimal.NewFromFloat(p.DiscountPercentage),
		DiscountStart:      p.DiscountStart,
		DiscountEnd:        p.DiscountEnd,
	}
}

func ForVariant(p catalog.Product, v catalog.Variant) Inputs {
	return Inputs{
		BasePrice:          Amount(v.Price),
		DiscountedPrice:    Amount(v.DiscountedPrice),
		DiscountPercentage: decimal.NewFromFloat(p.DiscountPercentage),
		DiscountStart:      p.DiscountStart,
		DiscountEnd:        p.DiscountEnd,
	}
}

// Amount quantizes a raw catalog number to a 2-place monetary value.
func Amount(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// Effective resolves the unit price for today. A discount counts as
// active only when both window dates are set and today falls inside
// the window, inclusive on both ends. When no explicit discounted
// price exists, an active percentage derives one from the base price.
// The discounted price only wins while it undercuts the base price.
func Effective(in Inputs, today time.Time) decimal.Decimal {
	active := windowActive(in.DiscountStart, in.DiscountEnd, today)

	discounted := in.DiscountedPrice
	if discounted.LessThanOrEqual(decimal.Zero) && active && in.DiscountPercentage.GreaterThan(decimal.Zero) {
		pct := in.DiscountPercentage.Div(decimal.NewFromInt(100))
		discounted = in.BasePrice.Mul(decimal.NewFromInt(1).Sub(pct))
	}

	if active && discounted.GreaterThan(decimal.Zero) && discounted.LessThan(in.BasePrice) {
		return discounted.Round(2)
	}

	return in.BasePrice.Round(2)
}

func windowActive(start, end *time.Time, today time.Time) bool {
	if start == nil || end == nil {
		return false
	}

	d := dateOnly(today)
	return !d.Before(dateOnly(*start)) && !d.After(dateOnly(*end))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
