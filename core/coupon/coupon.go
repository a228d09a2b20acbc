// Package coupon holds store-scoped discount codes and the discount
// math applied at checkout.
package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("coupon not found or invalid")

const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
)

type Coupon struct {
	ID           string          `json:"id" db:"coupon_id"`
	StoreID      string          `json:"storeId" db:"store_id"`
	Code         string          `json:"code" db:"code"`
	DiscountType string          `json:"discountType" db:"discount_type"`
	Value        decimal.Decimal `json:"value" db:"value"`
	UsageLimit   sql.NullInt64   `json:"usageLimit" db:"usage_limit"`
	UsedCount    int             `json:"usedCount" db:"used_count"`
	Active       bool            `json:"active" db:"active"`
	ValidFrom    time.Time       `json:"validFrom" db:"valid_from"`
	ValidTo      time.Time       `json:"validTo" db:"valid_to"`
}

// LimitReached reports whether the coupon's usage budget is spent. A
// coupon without a limit never runs out.
func (c Coupon) LimitReached() bool {
	return c.UsageLimit.Valid && int64(c.UsedCount) >= c.UsageLimit.Int64
}

// Discount computes the amount taken off the subtotal. Percentage
// coupons take their share of the subtotal; fixed coupons are capped
// at the subtotal so the order total can never go negative.
func Discount(c Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case TypePercentage:
		return subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case TypeFixed:
		if c.Value.GreaterThan(subtotal) {
			return subtotal.Round(2)
		}
		return c.Value.Round(2)
	}
	return decimal.Zero
}

// FetchValid resolves a code case-insensitively within the store,
// requiring the coupon to be active and inside its validity window.
func FetchValid(ctx context.Context, db sqlx.ExtContext, storeID, code string, now time.Time) (Coupon, error) {
	const q = `
	SELECT * FROM coupons
	WHERE store_id = $1 AND LOWER(code) = LOWER($2)
	  AND active AND valid_from <= $3 AND valid_to >= $3`

	var c Coupon
	if err := sqlx.GetContext(ctx, db, &c, q, storeID, code, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("fetching coupon[%s]: %w", code, err)
	}

	return c, nil
}

// IncrementUsage burns one use. The guard keeps the counter from ever
// passing the limit under concurrent order creation.
func IncrementUsage(ctx context.Context, tx sqlx.ExtContext, id string) error {
	const q = `
	UPDATE coupons SET used_count = used_count + 1
	WHERE coupon_id = $1
	  AND (usage_limit IS NULL OR used_count < usage_limit)`

	if _, err := tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("incrementing usage of coupon[%s]: %w", id, err)
	}

	return nil
}
