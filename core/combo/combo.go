// Package combo holds store-defined product bundles and expands them
// into cart lines.
package combo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("combo not found")

type Combo struct {
	ID        string          `json:"id" db:"combo_id"`
	StoreID   string          `json:"storeId" db:"store_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	IsActive  bool            `json:"isActive" db:"is_active"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// Component is one product slot of a combo. Quantity is per single
// combo unit. Components reference the base product; when the product
// has variants the buyer picks the SKU at add time.
type Component struct {
	ComboID   string `json:"-" db:"combo_id"`
	ProductID string `json:"productId" db:"product_id"`
	SKU       string `json:"sku" db:"sku"`
	Quantity  int    `json:"quantity" db:"quantity"`
}

// AddRequest is the add-combo-to-cart request. SKUs maps product id to
// the chosen variant SKU for variant-bearing components.
type AddRequest struct {
	ComboID  string            `json:"comboId" validate:"required,uuid4"`
	Quantity int               `json:"quantity" validate:"required,gt=0"`
	SKUs     map[string]string `json:"skus"`
}

// FetchWithComponents loads an active combo and its component list.
func FetchWithComponents(ctx context.Context, db sqlx.ExtContext, id string) (Combo, []Component, error) {
	const q = `SELECT * FROM combos WHERE combo_id = $1 AND is_active`

	var cmb Combo
	if err := sqlx.GetContext(ctx, db, &cmb, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Combo{}, nil, ErrNotFound
		}
		return Combo{}, nil, fmt.Errorf("fetching combo[%s]: %w", id, err)
	}

	const qi = `SELECT * FROM combo_items WHERE combo_id = $1 ORDER BY product_id`

	comps := []Component{}
	if err := sqlx.SelectContext(ctx, db, &comps, qi, id); err != nil {
		return Combo{}, nil, fmt.Errorf("fetching components of combo[%s]: %w", id, err)
	}

	return cmb, comps, nil
}
