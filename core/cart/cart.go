// Package cart owns the shopping cart aggregate: line items, the
// per-line uniqueness rules, and the two running totals. Every
// mutation revalidates quantities against the live catalog and ends
// with a single totals recompute.
package cart

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
)

var (
	ErrNotFound          = errors.New("cart not found")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrMultipleMatches means a SKU appears in more than one combo
	// instance and the caller did not say which one.
	ErrMultipleMatches = errors.New("multiple items match, combo instance id is required")
)

// Options is the selected option set of a variant line, stored as
// JSONB. Standalone simple products always carry an empty set.
type Options map[string]string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		o = Options{}
	}
	return json.Marshal(o)
}

func (o *Options) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scanning options: unexpected type %T", src)
	}
	return json.Unmarshal(b, o)
}

// Equal compares two option sets key for key and value for value.
func (o Options) Equal(other map[string]string) bool {
	if len(o) != len(other) {
		return false
	}
	for k, v := range o {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

type Cart struct {
	ID            string          `json:"id" db:"cart_id"`
	UserID        string          `json:"-" db:"user_id"`
	StoreID       string          `json:"storeId" db:"store_id"`
	ItemsSubtotal decimal.Decimal `json:"itemsSubtotal" db:"items_subtotal"`
	Total         decimal.Decimal `json:"total" db:"total"`
	IsActive      bool            `json:"-" db:"is_active"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	Items         []Item          `json:"items" db:"-"`
}

type Item struct {
	ID              string          `json:"-" db:"cart_item_id"`
	CartID          string          `json:"-" db:"cart_id"`
	ProductID       string          `json:"productId" db:"product_id"`
	ProductName     string          `json:"productName" db:"product_name"`
	SKU             string          `json:"sku" db:"sku"`
	Quantity        int             `json:"quantity" db:"quantity"`
	Price           decimal.Decimal `json:"price" db:"price"`
	SelectedOptions Options         `json:"selectedOptions" db:"selected_options"`
	ComboID         sql.NullString  `json:"-" db:"combo_id"`
	ComboInstanceID sql.NullString  `json:"comboInstanceId" db:"combo_instance_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// LinePrice is what the buyer pays for the line.
func (it Item) LinePrice() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// comboChild reports a zero-priced component line of a combo instance.
func (it Item) comboChild() bool {
	return it.ComboID.Valid && it.Price.IsZero()
}

// ItemNew is the add-to-cart request.
type ItemNew struct {
	StoreID         string            `json:"storeId" validate:"required,uuid4"`
	ProductID       string            `json:"productId" validate:"required"`
	SKU             string            `json:"sku" validate:"required"`
	Quantity        int               `json:"quantity" validate:"required,gt=0"`
	SelectedOptions map[string]string `json:"selectedOptions"`
}

const (
	ActionIncrement = "increment"
	ActionDecrement = "decrement"
	ActionSet       = "set_quantity"
)

// QuantityUpdate is the change-quantity request. Quantity is only
// consulted for the set action.
type QuantityUpdate struct {
	StoreID         string `json:"storeId" validate:"required,uuid4"`
	ProductID       string `json:"productId" validate:"required"`
	SKU             string `json:"sku" validate:"required"`
	Action          string `json:"action" validate:"required,oneof=increment decrement set_quantity"`
	Quantity        int    `json:"quantity"`
	ComboInstanceID string `json:"comboInstanceId" validate:"omitempty,uuid4"`
}

// ItemRemove is the remove-line request.
type ItemRemove struct {
	StoreID         string `json:"storeId" validate:"required,uuid4"`
	SKU             string `json:"sku" validate:"required"`
	ComboInstanceID string `json:"comboInstanceId" validate:"omitempty,uuid4"`
}

// Totals computes both running totals from the given lines.
// ItemsSubtotal is what the buyer pays: the stored line prices times
// quantities. Total is the informational undiscounted baseline: live
// catalog base prices times quantities, skipping zero-priced combo
// children (the combo summary line contributes its own lookup, which
// for a synthetic combo id falls back to the stored combo price).
// Catalog misses fall back to the stored line price so a stale catalog
// never breaks cart reads.
func Totals(items []Item, look func(productID string) (catalog.Product, error)) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	total = decimal.Zero

	for _, it := range items {
		subtotal = subtotal.Add(it.LinePrice())

		if it.comboChild() {
			continue
		}

		base := it.Price
		if p, err := look(it.ProductID); err == nil {
			if p.HasVariants() {
				if v, ok := p.Variant(it.SKU); ok {
					base = decimal.NewFromFloat(v.Price).Round(2)
				}
			} else if p.Price > 0 {
				base = decimal.NewFromFloat(p.Price).Round(2)
			}
		}

		total = total.Add(base.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	return subtotal.Round(2), total.Round(2)
}

// Rescale recomputes a combo child quantity when the summary line
// moves from oldSummary to newSummary, preserving the per-unit ratio
// with integer floor division.
func Rescale(childQty, oldSummary, newSummary int) int {
	if oldSummary <= 0 {
		return childQty
	}
	return (childQty / oldSummary) * newSummary
}
