package checkout

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/core/coupon"
)

func TestApplyCoupon(t *testing.T) {
	subtotal := decimal.NewFromInt(200)

	t.Run("missing coupon warns without failing", func(t *testing.T) {
		id, discount, warning := applyCoupon(coupon.Coupon{}, false, subtotal)
		if id.Valid {
			t.Error("no coupon should be attached")
		}
		if !discount.IsZero() {
			t.Errorf("discount = %s, want 0", discount)
		}
		if warning != WarnCouponInvalid {
			t.Errorf("warning = %q, want %q", warning, WarnCouponInvalid)
		}
	})

	t.Run("exhausted coupon warns without failing", func(t *testing.T) {
		cpn := coupon.Coupon{
			ID:           "cp1",
			DiscountType: coupon.TypePercentage,
			Value:        decimal.NewFromInt(10),
			UsageLimit:   sql.NullInt64{Int64: 3, Valid: true},
			UsedCount:    3,
		}

		id, discount, warning := applyCoupon(cpn, true, subtotal)
		if id.Valid {
			t.Error("exhausted coupon should not be attached")
		}
		if !discount.IsZero() {
			t.Errorf("discount = %s, want 0", discount)
		}
		if warning != WarnCouponLimit {
			t.Errorf("warning = %q, want %q", warning, WarnCouponLimit)
		}
	})

	t.Run("valid coupon discounts and attaches", func(t *testing.T) {
		cpn := coupon.Coupon{
			ID:           "cp1",
			DiscountType: coupon.TypePercentage,
			Value:        decimal.NewFromInt(10),
		}

		id, discount, warning := applyCoupon(cpn, true, subtotal)
		if !id.Valid || id.String != "cp1" {
			t.Errorf("attached coupon = %+v, want cp1", id)
		}
		if want := decimal.NewFromInt(20); !discount.Equal(want) {
			t.Errorf("discount = %s, want %s", discount, want)
		}
		if warning != "" {
			t.Errorf("unexpected warning %q", warning)
		}
	})
}
