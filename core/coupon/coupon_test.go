package coupon

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name     string
		c        Coupon
		subtotal string
		want     string
	}{
		{
			name:     "percentage",
			c:        Coupon{DiscountType: TypePercentage, Value: d("10")},
			subtotal: "200.00",
			want:     "20",
		},
		{
			name:     "percentage rounds half up",
			c:        Coupon{DiscountType: TypePercentage, Value: d("15")},
			subtotal: "33.33",
			want:     "5", // 4.9995 -> 5.00
		},
		{
			name:     "fixed below subtotal",
			c:        Coupon{DiscountType: TypeFixed, Value: d("25")},
			subtotal: "100.00",
			want:     "25",
		},
		{
			name:     "fixed capped at subtotal",
			c:        Coupon{DiscountType: TypeFixed, Value: d("50")},
			subtotal: "30.00",
			want:     "30",
		},
		{
			name:     "unknown type discounts nothing",
			c:        Coupon{DiscountType: "mystery", Value: d("50")},
			subtotal: "30.00",
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discount(tt.c, d(tt.subtotal))
			if got.String() != tt.want {
				t.Errorf("Discount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLimitReached(t *testing.T) {
	unlimited := Coupon{UsedCount: 9000}
	if unlimited.LimitReached() {
		t.Error("coupon without limit should never run out")
	}

	limited := Coupon{UsageLimit: sql.NullInt64{Int64: 5, Valid: true}, UsedCount: 4}
	if limited.LimitReached() {
		t.Error("4 of 5 uses should not be exhausted")
	}

	limited.UsedCount = 5
	if !limited.LimitReached() {
		t.Error("5 of 5 uses should be exhausted")
	}
}
