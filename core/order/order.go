// Package order turns checkout sessions into durable orders and walks
// them through their lifecycle. A cart converts at most once: the
// database enforces a single live order per cart.
package order

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrDuplicate            = errors.New("order already exists for this cart")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrProofExpired         = errors.New("this payment reference has expired")
)

type Status string

const (
	Pending    Status = "pending"
	Paid       Status = "paid"
	Expired    Status = "expired"
	Cancelled  Status = "cancelled"
	Delivered  Status = "delivered"
	Processing Status = "processing"
	Shipped    Status = "shipped"
)

// Buyers get two hours to upload payment proof before a pending order
// lapses.
const ExpiryWindow = 2 * time.Hour

// ReferenceLength sizes the human-readable order code.
const ReferenceLength = 10

type Order struct {
	ID              string          `json:"id" db:"order_id"`
	Reference       string          `json:"reference" db:"reference"`
	UserID          string          `json:"userId" db:"user_id"`
	StoreID         string          `json:"storeId" db:"store_id"`
	CartID          sql.NullString  `json:"cartId" db:"cart_id"`
	PaymentMethodID sql.NullString  `json:"paymentMethodId" db:"payment_method_id"`
	ItemsSubtotal   decimal.Decimal `json:"itemsSubtotal" db:"items_subtotal"`
	ShippingCost    decimal.Decimal `json:"shippingCost" db:"shipping_cost"`
	DiscountTotal   decimal.Decimal `json:"discountTotal" db:"discount_total"`
	Total           decimal.Decimal `json:"total" db:"total"`
	CouponID        sql.NullString  `json:"couponId" db:"coupon_id"`
	Notes           string          `json:"notes" db:"notes"`
	PaymentProof    sql.NullString  `json:"paymentProof" db:"payment_proof"`
	Status          Status          `json:"status" db:"status"`
	ExpiresAt       sql.NullTime    `json:"expiresAt" db:"expires_at"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// EffectiveStatus applies lazy expiry: a pending order past its
// deadline reads as expired without waiting for a write to flip it.
func (o Order) EffectiveStatus(now time.Time) Status {
	if o.Status == Pending && o.ExpiresAt.Valid && now.After(o.ExpiresAt.Time) {
		return Expired
	}
	return o.Status
}

type OrderNew struct {
	CheckoutSessionID string `json:"checkoutSessionId" validate:"required,uuid4"`
	PaymentMethodID   string `json:"paymentMethodId" validate:"required,uuid4"`
	Notes             string `json:"notes"`
}

// StatusUpdate is the admin transition request. Expired is reached by
// the clock, not by hand, so it is not an admin-settable value.
type StatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=pending paid processing shipped delivered cancelled"`
}
