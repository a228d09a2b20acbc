package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("store not found")

type Store struct {
	ID        string    `json:"id" db:"store_id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type PaymentMethod struct {
	ID            string         `json:"id" db:"payment_method_id"`
	StoreID       string         `json:"storeId" db:"store_id"`
	Name          string         `json:"name" db:"name"`
	AccountName   sql.NullString `json:"accountName" db:"account_name"`
	AccountNumber sql.NullString `json:"accountNumber" db:"account_number"`
	IsActive      bool           `json:"isActive" db:"is_active"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Store, error) {
	const q = `SELECT * FROM stores WHERE store_id = $1`

	var s Store
	if err := sqlx.GetContext(ctx, db, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Store{}, ErrNotFound
		}
		return Store{}, fmt.Errorf("fetching store[%s]: %w", id, err)
	}

	return s, nil
}

// FetchActivePaymentMethod resolves a payment method only when it
// belongs to the given store and is still enabled.
func FetchActivePaymentMethod(ctx context.Context, db sqlx.ExtContext, id string, storeID string) (PaymentMethod, error) {
	const q = `
	SELECT * FROM payment_methods
	WHERE payment_method_id = $1 AND store_id = $2 AND is_active`

	var pm PaymentMethod
	if err := sqlx.GetContext(ctx, db, &pm, q, id, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PaymentMethod{}, ErrNotFound
		}
		return PaymentMethod{}, fmt.Errorf("fetching payment method[%s]: %w", id, err)
	}

	return pm, nil
}

// IsAdmin reports whether the user administers the store.
func IsAdmin(ctx context.Context, db sqlx.ExtContext, storeID string, userID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM store_admins WHERE store_id = $1 AND user_id = $2`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, storeID, userID); err != nil {
		return false, fmt.Errorf("checking admin of store[%s]: %w", storeID, err)
	}

	return n > 0, nil
}
