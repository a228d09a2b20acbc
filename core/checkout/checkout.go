// Package checkout turns a live cart into an immutable priced quote:
// shipping zone and cost resolution, optional coupon, and the final
// total, snapshotted as a CheckoutSession.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/core/cart"
	"github.com/veciapp/marketplace/core/coupon"
	"github.com/veciapp/marketplace/core/shipping"
	"github.com/veciapp/marketplace/core/store"
	"github.com/veciapp/marketplace/core/user"
	"github.com/veciapp/marketplace/validate"
)

var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrStoreUnavailable = errors.New("store is not accepting orders")
)

const (
	WarnCouponInvalid = "Coupon not found or invalid. Proceeding without discount."
	WarnCouponLimit   = "Coupon usage limit reached. Proceeding without discount."
)

// Session is one checkout attempt, frozen at quote time. Orders copy
// their monetary fields from here, never from the cart.
type Session struct {
	ID            string          `json:"id" db:"session_id"`
	UserID        string          `json:"-" db:"user_id"`
	StoreID       string          `json:"storeId" db:"store_id"`
	CartID        string          `json:"cartId" db:"cart_id"`
	ItemsSubtotal decimal.Decimal `json:"itemsSubtotal" db:"items_subtotal"`
	ShippingCost  decimal.Decimal `json:"shippingCost" db:"shipping_cost"`
	DiscountTotal decimal.Decimal `json:"discountTotal" db:"discount_total"`
	Total         decimal.Decimal `json:"total" db:"total"`
	CouponID      sql.NullString  `json:"couponId" db:"coupon_id"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

type QuoteRequest struct {
	CartID           string `json:"cartId" validate:"required,uuid4"`
	ShippingMethodID string `json:"shippingMethodId" validate:"required,uuid4"`
	CouponCode       string `json:"couponCode"`
}

// Quote prices the cart for one shipping method and optional coupon
// and persists the snapshot. The returned warning is non-empty when a
// coupon was given but could not be applied; the quote itself still
// succeeds without the discount.
func Quote(ctx context.Context, db *sqlx.DB, userID string, req QuoteRequest) (Session, string, error) {
	c, err := cart.FetchOwned(ctx, db, req.CartID, userID)
	if err != nil {
		return Session{}, "", err
	}
	if !c.IsActive {
		return Session{}, "", cart.ErrNotFound
	}

	st, err := store.Fetch(ctx, db, c.StoreID)
	if err != nil {
		return Session{}, "", err
	}
	if !st.IsActive {
		return Session{}, "", ErrStoreUnavailable
	}

	u, err := user.Fetch(ctx, db, userID)
	if err != nil {
		return Session{}, "", err
	}

	zones, err := shipping.FetchZones(ctx, db, c.StoreID)
	if err != nil {
		return Session{}, "", err
	}

	zone, err := shipping.SelectZone(zones, shipping.Location{
		Country:      u.Country.String,
		City:         u.City.String,
		Neighborhood: u.Neighborhood.String,
	})
	if err != nil {
		return Session{}, "", err
	}

	method, err := shipping.FetchActiveMethod(ctx, db, req.ShippingMethodID, c.StoreID)
	if err != nil {
		return Session{}, "", err
	}

	mz, linked, err := shipping.FetchMethodZone(ctx, db, method.ID, zone.ID)
	if err != nil {
		return Session{}, "", err
	}
	shippingCost := shipping.Cost(method, mz, linked)

	var (
		cpn     coupon.Coupon
		found   bool
		warning string
	)
	if req.CouponCode != "" {
		cpn, err = coupon.FetchValid(ctx, db, c.StoreID, req.CouponCode, time.Now().UTC())
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			found = false
		case err != nil:
			return Session{}, "", err
		default:
			found = true
		}
	} else {
		found = false
	}

	var (
		couponID sql.NullString
		discount decimal.Decimal
	)
	if req.CouponCode != "" {
		couponID, discount, warning = applyCoupon(cpn, found, c.ItemsSubtotal)
	} else {
		discount = decimal.Zero
	}

	s := Session{
		ID:            validate.GenerateID(),
		UserID:        userID,
		StoreID:       c.StoreID,
		CartID:        c.ID,
		ItemsSubtotal: c.ItemsSubtotal,
		ShippingCost:  shippingCost,
		DiscountTotal: discount,
		Total:         c.ItemsSubtotal.Add(shippingCost).Sub(discount).Round(2),
		CouponID:      couponID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := insert(ctx, db, s); err != nil {
		return Session{}, "", err
	}

	return s, warning, nil
}

// applyCoupon settles whether the coupon actually discounts this
// quote. A missing or exhausted coupon degrades to a warning instead
// of failing the checkout.
func applyCoupon(cpn coupon.Coupon, found bool, subtotal decimal.Decimal) (sql.NullString, decimal.Decimal, string) {
	if !found {
		return sql.NullString{}, decimal.Zero, WarnCouponInvalid
	}
	if cpn.LimitReached() {
		return sql.NullString{}, decimal.Zero, WarnCouponLimit
	}
	return sql.NullString{String: cpn.ID, Valid: true}, coupon.Discount(cpn, subtotal), ""
}

func insert(ctx context.Context, db sqlx.ExtContext, s Session) error {
	const q = `
	INSERT INTO checkout_sessions
		(session_id, user_id, store_id, cart_id, items_subtotal, shipping_cost,
		 discount_total, total, coupon_id, created_at)
	VALUES
		(:session_id, :user_id, :store_id, :cart_id, :items_subtotal, :shipping_cost,
		 :discount_total, :total, :coupon_id, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, s); err != nil {
		return fmt.Errorf("inserting checkout session: %w", err)
	}

	return nil
}

// FetchOwned loads a session scoped to its owner.
func FetchOwned(ctx context.Context, db sqlx.ExtContext, sessionID, userID string) (Session, error) {
	const q = `SELECT * FROM checkout_sessions WHERE session_id = $1 AND user_id = $2`

	var s Session
	if err := sqlx.GetContext(ctx, db, &s, q, sessionID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("fetching checkout session[%s]: %w", sessionID, err)
	}

	return s, nil
}
