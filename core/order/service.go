package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/veciapp/marketplace/core/cart"
	"github.com/veciapp/marketplace/core/checkout"
	"github.com/veciapp/marketplace/core/coupon"
	"github.com/veciapp/marketplace/core/store"
	"github.com/veciapp/marketplace/database"
	"github.com/veciapp/marketplace/random"
	"github.com/veciapp/marketplace/validate"
)

// referenceRetries bounds how many fresh codes Create draws when a
// generated reference collides with an existing order.
const referenceRetries = 3

// Create converts a checkout session into a pending order. The cart is
// deactivated and the coupon usage counted inside the same transaction
// as the insert, so a submission either fully lands or leaves no trace.
func Create(ctx context.Context, db *sqlx.DB, userID string, req OrderNew) (Order, error) {
	ses, err := checkout.FetchOwned(ctx, db, req.CheckoutSessionID, userID)
	if err != nil {
		return Order{}, err
	}

	pm, err := store.FetchActivePaymentMethod(ctx, db, req.PaymentMethodID, ses.StoreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, ErrInvalidPaymentMethod
		}
		return Order{}, err
	}

	now := time.Now().UTC()
	o := Order{
		ID:              validate.GenerateID(),
		UserID:          userID,
		StoreID:         ses.StoreID,
		CartID:          sql.NullString{String: ses.CartID, Valid: true},
		PaymentMethodID: sql.NullString{String: pm.ID, Valid: true},
		ItemsSubtotal:   ses.ItemsSubtotal,
		ShippingCost:    ses.ShippingCost,
		DiscountTotal:   ses.DiscountTotal,
		Total:           ses.Total,
		CouponID:        ses.CouponID,
		Notes:           req.Notes,
		Status:          Pending,
		ExpiresAt:       sql.NullTime{Time: now.Add(ExpiryWindow), Valid: true},
		CreatedAt:       now,
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := insertWithRetry(ctx, tx, &o); err != nil {
			return err
		}
		if err := cart.Deactivate(ctx, tx, ses.CartID); err != nil {
			return err
		}
		if o.CouponID.Valid {
			if err := coupon.IncrementUsage(ctx, tx, o.CouponID.String); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return o, nil
}

// insertWithRetry inserts the order, drawing a new reference when the
// generated one is already taken. A live-order clash on the cart is a
// real duplicate and surfaces as ErrDuplicate instead.
func insertWithRetry(ctx context.Context, tx sqlx.ExtContext, o *Order) error {
	const q = `
	INSERT INTO orders
		(order_id, reference, user_id, store_id, cart_id, payment_method_id,
		 items_subtotal, shipping_cost, discount_total, total, coupon_id,
		 notes, status, expires_at, created_at)
	VALUES
		(:order_id, :reference, :user_id, :store_id, :cart_id, :payment_method_id,
		 :items_subtotal, :shipping_cost, :discount_total, :total, :coupon_id,
		 :notes, :status, :expires_at, :created_at)`

	for i := 0; i < referenceRetries; i++ {
		o.Reference = random.Reference(ReferenceLength)

		_, err := sqlx.NamedExecContext(ctx, tx, q, *o)
		switch {
		case err == nil:
			return nil
		case uniqueViolation(err, "orders_live_cart"):
			return ErrDuplicate
		case uniqueViolation(err, "orders_reference_key"):
			continue
		default:
			return fmt.Errorf("inserting order: %w", err)
		}
	}

	return fmt.Errorf("inserting order: reference collisions exhausted %d attempts", referenceRetries)
}

func uniqueViolation(err error, constraint string) bool {
	var pqe *pq.Error
	return errors.As(err, &pqe) && pqe.Code == "23505" && pqe.Constraint == constraint
}

// FetchOwned loads an order scoped to its buyer.
func FetchOwned(ctx context.Context, db sqlx.ExtContext, orderID, userID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1 AND user_id = $2`

	var o Order
	if err := sqlx.GetContext(ctx, db, &o, q, orderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("fetching order[%s]: %w", orderID, err)
	}

	o.Status = o.EffectiveStatus(time.Now().UTC())
	return o, nil
}

// Fetch loads an order without an ownership scope. Callers guard access
// themselves; the admin surface checks store membership first.
func Fetch(ctx context.Context, db sqlx.ExtContext, orderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var o Order
	if err := sqlx.GetContext(ctx, db, &o, q, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("fetching order[%s]: %w", orderID, err)
	}

	o.Status = o.EffectiveStatus(time.Now().UTC())
	return o, nil
}

// ListForUser returns the buyer's orders, newest first.
func ListForUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	var list []Order
	if err := sqlx.SelectContext(ctx, db, &list, q, userID); err != nil {
		return nil, fmt.Errorf("listing orders of user[%s]: %w", userID, err)
	}

	now := time.Now().UTC()
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(now)
	}
	return list, nil
}

// ListForStore returns a store's orders for its admins, newest first.
func ListForStore(ctx context.Context, db sqlx.ExtContext, storeID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE store_id = $1 ORDER BY created_at DESC`

	var list []Order
	if err := sqlx.SelectContext(ctx, db, &list, q, storeID); err != nil {
		return nil, fmt.Errorf("listing orders of store[%s]: %w", storeID, err)
	}

	now := time.Now().UTC()
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(now)
	}
	return list, nil
}

// UpdateStatus moves an order to a new status. Leaving pending clears
// the expiry deadline; it only ever applies to unpaid submissions.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, orderID string, status Status) (Order, error) {
	const q = `
	UPDATE orders SET
		status     = $2,
		expires_at = CASE WHEN $2 = 'pending' THEN expires_at ELSE NULL END
	WHERE order_id = $1`

	res, err := db.ExecContext(ctx, q, orderID, status)
	if err != nil {
		return Order{}, fmt.Errorf("updating status of order[%s]: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Order{}, ErrNotFound
	}

	return Fetch(ctx, db, orderID)
}

// proofGate decides whether an upload may still attach to the order.
// The flip result reports a pending row that lapsed and must be
// persisted as expired by the caller.
func proofGate(o Order, now time.Time) (flip bool, err error) {
	if o.EffectiveStatus(now) == Expired {
		return o.Status == Pending, ErrProofExpired
	}
	return false, nil
}

// markExpired flips a lapsed pending order to expired. The status
// guard keeps it from touching orders an admin moved on meanwhile.
func markExpired(ctx context.Context, db sqlx.ExtContext, orderID string) error {
	const q = `UPDATE orders SET status = 'expired' WHERE order_id = $1 AND status = 'pending'`

	if _, err := db.ExecContext(ctx, q, orderID); err != nil {
		return fmt.Errorf("expiring order[%s]: %w", orderID, err)
	}

	return nil
}

// GuardProof verifies an upload can still attach to the order, before
// the caller writes anything to disk. A lapsed pending order is
// persisted as expired on the spot so later reads agree with the
// rejection.
func GuardProof(ctx context.Context, db sqlx.ExtContext, orderID, userID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1 AND user_id = $2`

	var o Order
	if err := sqlx.GetContext(ctx, db, &o, q, orderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("fetching order[%s]: %w", orderID, err)
	}

	flip, gerr := proofGate(o, time.Now().UTC())
	if gerr != nil {
		if flip {
			if err := markExpired(ctx, db, o.ID); err != nil {
				return Order{}, err
			}
		}
		return Order{}, gerr
	}

	return o, nil
}

// AttachProof records the buyer's uploaded payment proof. An order past
// its deadline is flipped to expired and the upload refused; the flip
// runs on the outer connection because returning the rejection rolls
// the transaction back.
func AttachProof(ctx context.Context, db *sqlx.DB, orderID, userID, path string) (Order, error) {
	var (
		out  Order
		flip bool
	)

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		const lock = `SELECT * FROM orders WHERE order_id = $1 AND user_id = $2 FOR UPDATE`

		var o Order
		if err := sqlx.GetContext(ctx, tx, &o, lock, orderID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		var gerr error
		if flip, gerr = proofGate(o, time.Now().UTC()); gerr != nil {
			return gerr
		}

		const attach = `UPDATE orders SET payment_proof = $2 WHERE order_id = $1`
		if _, err := tx.ExecContext(ctx, attach, orderID, path); err != nil {
			return fmt.Errorf("attaching proof to order[%s]: %w", orderID, err)
		}

		o.PaymentProof = sql.NullString{String: path, Valid: true}
		out = o
		return nil
	})
	if err != nil {
		if flip {
			if merr := markExpired(ctx, db, orderID); merr != nil {
				return Order{}, merr
			}
		}
		return Order{}, err
	}

	return out, nil
}
