package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
	"github.com/veciapp/marketplace/core/combo"
	"github.com/veciapp/marketplace/core/pricing"
	"github.com/veciapp/marketplace/database"
	"github.com/veciapp/marketplace/validate"
)

var (
	ErrStoreMismatch   = errors.New("product does not belong to the store")
	ErrVariantNotFound = errors.New("variant not found")
	ErrInvalidSKU      = errors.New("invalid sku for product without variants")
	ErrOptionsMismatch = errors.New("selected options do not match the variant")
	ErrNoOptions       = errors.New("product has no variants or selectable options")
)

// AddItem puts a standalone product line in the user's live cart for
// the store, creating the cart on demand. An existing standalone line
// with the same SKU is replaced, not summed. The whole mutation,
// including the totals recompute, runs in one transaction under the
// cart row lock.
func AddItem(ctx context.Context, db *sqlx.DB, cat catalog.Getter, userID string, ni ItemNew) (Cart, error) {
	p, err := cat.Lookup(ctx, ni.ProductID)
	if err != nil {
		return Cart{}, fmt.Errorf("resolving product[%s]: %w", ni.ProductID, err)
	}

	if p.StoreID != ni.StoreID {
		return Cart{}, ErrStoreMismatch
	}

	var (
		stock   int
		options Options
		inputs  pricing.Inputs
	)

	if p.HasVariants() {
		v, ok := p.Variant(ni.SKU)
		if !ok {
			return Cart{}, ErrVariantNotFound
		}
		if !Options(v.Options).Equal(ni.SelectedOptions) {
			return Cart{}, ErrOptionsMismatch
		}
		stock = v.Stock
		options = Options(v.Options)
		inputs = pricing.ForVariant(p, v)
	} else {
		if ni.SKU != p.SKU {
			return Cart{}, ErrInvalidSKU
		}
		if len(ni.SelectedOptions) > 0 {
			return Cart{}, ErrNoOptions
		}
		stock = p.Stock
		options = Options{}
		inputs = pricing.ForProduct(p)
	}

	if ni.Quantity > stock {
		return Cart{}, stockErr(p.Name, ni.Quantity, stock)
	}

	price := pricing.Effective(inputs, time.Now().UTC())

	var out Cart
	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		c, err := lockActive(ctx, tx, userID, ni.StoreID)
		if err != nil {
			return err
		}

		if err := deleteStandalone(ctx, tx, c.ID, ni.SKU); err != nil {
			return err
		}

		now := time.Now().UTC()
		it := Item{
			ID:              validate.GenerateID(),
			CartID:          c.ID,
			ProductID:       ni.ProductID,
			ProductName:     p.Name,
			SKU:             ni.SKU,
			Quantity:        ni.Quantity,
			Price:           price,
			SelectedOptions: options,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := insertItem(ctx, tx, it); err != nil {
			return err
		}

		out, err = recompute(ctx, tx, cat, c)
		return err
	})
	if err != nil {
		return Cart{}, err
	}

	return out, nil
}

// AddCombo expands the combo into child lines plus one priced summary
// line, all sharing a fresh instance id. Component resolution happens
// before any write, so a bad component leaves no partial state.
func AddCombo(ctx context.Context, db *sqlx.DB, cat catalog.Getter, userID string, req combo.AddRequest) (Cart, error) {
	cmb, comps, err := combo.FetchWithComponents(ctx, db, req.ComboID)
	if err != nil {
		return Cart{}, err
	}

	lines, err := combo.Resolve(ctx, cat, cmb, comps, req.Quantity, req.SKUs)
	if err != nil {
		return Cart{}, err
	}

	var out Cart
	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		c, err := lockActive(ctx, tx, userID, cmb.StoreID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, ln := range lines {
			it := Item{
				ID:              validate.GenerateID(),
				CartID:          c.ID,
				ProductID:       ln.ProductID,
				ProductName:     ln.ProductName,
				SKU:             ln.SKU,
				Quantity:        ln.Quantity,
				Price:           ln.Price,
				SelectedOptions: Options(ln.SelectedOptions),
				ComboID:         sql.NullString{String: ln.ComboID, Valid: true},
				ComboInstanceID: sql.NullString{String: ln.ComboInstanceID, Valid: true},
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := insertItem(ctx, tx, it); err != nil {
				return err
			}
		}

		out, err = recompute(ctx, tx, cat, c)
		return err
	})
	if err != nil {
		return Cart{}, err
	}

	return out, nil
}

// UpdateQuantity applies increment, decrement or set_quantity to one
// line. Combo summary lines scale every sibling proportionally, and
// only after stock passes for all of them. Dropping below one removes
// the line, or the whole combo instance for a summary line.
func UpdateQuantity(ctx context.Context, db *sqlx.DB, cat catalog.Getter, userID string, up QuantityUpdate) (Cart, error) {
	var out Cart
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		c, err := lockExisting(ctx, tx, userID, up.StoreID)
		if err != nil {
			return err
		}

		items, err := FetchItems(ctx, tx, c.ID)
		if err != nil {
			return err
		}

		line, err := findLine(items, up.SKU, up.ComboInstanceID)
		if err != nil {
			return err
		}

		if isComboSummary(up.ProductID) && line.ComboInstanceID.Valid {
			if err := rescaleInstance(ctx, tx, cat, c, items, line, up); err != nil {
				return err
			}
		} else {
			if err := updateStandalone(ctx, tx, cat, line, up); err != nil {
				return err
			}
		}

		out, err = recompute(ctx, tx, cat, c)
		return err
	})
	if err != nil {
		return Cart{}, err
	}

	return out, nil
}

// RemoveItem deletes a standalone line, or the full combo instance
// when the line belongs to one. The second return reports whether the
// cart is now empty.
func RemoveItem(ctx context.Context, db *sqlx.DB, cat catalog.Getter, userID string, rm ItemRemove) (Cart, bool, error) {
	var (
		out   Cart
		empty bool
	)
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		c, err := lockExisting(ctx, tx, userID, rm.StoreID)
		if err != nil {
			return err
		}

		items, err := FetchItems(ctx, tx, c.ID)
		if err != nil {
			return err
		}

		line, err := findLine(items, rm.SKU, rm.ComboInstanceID)
		if err != nil {
			return err
		}

		if line.ComboInstanceID.Valid {
			err = deleteInstance(ctx, tx, c.ID, line.ComboInstanceID.String)
		} else {
			err = deleteItem(ctx, tx, line.ID)
		}
		if err != nil {
			return err
		}

		out, err = recompute(ctx, tx, cat, c)
		empty = len(out.Items) == 0
		return err
	})
	if err != nil {
		return Cart{}, false, err
	}

	return out, empty, nil
}

// Clear deletes every line and zeroes both totals.
func Clear(ctx context.Context, db *sqlx.DB, userID, cartID string) (Cart, error) {
	var out Cart
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		c, err := lockByID(ctx, tx, cartID, userID)
		if err != nil {
			return err
		}

		if err := deleteAllItems(ctx, tx, c.ID); err != nil {
			return err
		}

		if err := updateTotals(ctx, tx, c.ID, decimal.Zero, decimal.Zero); err != nil {
			return err
		}

		c.ItemsSubtotal = decimal.Zero
		c.Total = decimal.Zero
		c.Items = []Item{}
		out = c
		return nil
	})
	if err != nil {
		return Cart{}, err
	}

	return out, nil
}

// recompute is the single finalize step of every mutation: one pass
// over the lines, one totals write.
func recompute(ctx context.Context, tx sqlx.ExtContext, cat catalog.Getter, c Cart) (Cart, error) {
	items, err := FetchItems(ctx, tx, c.ID)
	if err != nil {
		return Cart{}, err
	}

	subtotal, total := Totals(items, func(productID string) (catalog.Product, error) {
		return cat.Lookup(ctx, productID)
	})

	if err := updateTotals(ctx, tx, c.ID, subtotal, total); err != nil {
		return Cart{}, err
	}

	c.ItemsSubtotal = subtotal
	c.Total = total
	c.Items = items
	return c, nil
}

// findLine locates the target of a mutation. Without an instance id a
// single match of any kind is accepted; several matches mean the SKU
// lives in multiple combo instances and the caller must disambiguate.
func findLine(items []Item, sku, instanceID string) (Item, error) {
	var matches []Item
	for _, it := range items {
		if it.SKU != sku {
			continue
		}
		if instanceID != "" {
			if it.ComboInstanceID.Valid && it.ComboInstanceID.String == instanceID {
				matches = append(matches, it)
			}
			continue
		}
		matches = append(matches, it)
	}

	switch len(matches) {
	case 0:
		return Item{}, ErrItemNotFound
	case 1:
		return matches[0], nil
	default:
		return Item{}, ErrMultipleMatches
	}
}

func isComboSummary(productID string) bool {
	return strings.HasPrefix(productID, "combo-")
}

// rescaleInstance scales every line of a combo instance when its
// summary quantity changes. Stock is validated for all siblings before
// the first write, so failure leaves the whole group untouched.
func rescaleInstance(ctx context.Context, tx sqlx.ExtContext, cat catalog.Getter, c Cart, items []Item, main Item, up QuantityUpdate) error {
	var group []Item
	for _, it := range items {
		if it.ComboInstanceID.Valid && it.ComboInstanceID.String == main.ComboInstanceID.String {
			group = append(group, it)
		}
	}

	oldQty := main.Quantity
	newQty, err := targetQuantity(oldQty, up)
	if err != nil {
		return err
	}

	if newQty < 1 {
		return deleteInstance(ctx, tx, c.ID, main.ComboInstanceID.String)
	}

	if err := checkRescaleStock(ctx, cat, group, main.ID, oldQty, newQty); err != nil {
		return err
	}

	for _, it := range group {
		qty := newQty
		if it.ID != main.ID {
			qty = Rescale(it.Quantity, oldQty, newQty)
		}
		if err := updateItemQuantity(ctx, tx, it.ID, qty); err != nil {
			return err
		}
	}

	return nil
}

// checkRescaleStock validates every child of the instance against live
// stock at its rescaled quantity. It runs before the first write, so a
// failing child leaves the whole group untouched.
func checkRescaleStock(ctx context.Context, cat catalog.Getter, group []Item, mainID string, oldQty, newQty int) error {
	for _, it := range group {
		if it.ID == mainID {
			continue
		}

		p, err := cat.Lookup(ctx, it.ProductID)
		if err != nil {
			return fmt.Errorf("resolving combo component[%s]: %w", it.ProductID, err)
		}

		stock := p.Stock
		if p.HasVariants() {
			v, ok := p.Variant(it.SKU)
			if !ok {
				return fmt.Errorf("%w: sku[%s]", ErrVariantNotFound, it.SKU)
			}
			stock = v.Stock
		}

		if q := Rescale(it.Quantity, oldQty, newQty); q > stock {
			return stockErr(p.Name, q, stock)
		}
	}

	return nil
}

// updateStandalone applies the quantity action to a non-summary line,
// revalidating against live stock. Catalog failures abort the
// mutation.
func updateStandalone(ctx context.Context, tx sqlx.ExtContext, cat catalog.Getter, line Item, up QuantityUpdate) error {
	p, err := cat.Lookup(ctx, up.ProductID)
	if err != nil {
		return fmt.Errorf("resolving product[%s]: %w", up.ProductID, err)
	}

	stock := p.Stock
	if p.HasVariants() {
		v, ok := p.Variant(up.SKU)
		if !ok {
			return ErrVariantNotFound
		}
		stock = v.Stock
	} else if p.SKU != up.SKU {
		return ErrInvalidSKU
	}

	newQty, err := targetQuantity(line.Quantity, up)
	if err != nil {
		return err
	}

	if newQty < 1 {
		return deleteItem(ctx, tx, line.ID)
	}

	if newQty > stock {
		return stockErr(p.Name, newQty, stock)
	}

	return updateItemQuantity(ctx, tx, line.ID, newQty)
}

func targetQuantity(current int, up QuantityUpdate) (int, error) {
	switch up.Action {
	case ActionIncrement:
		return current + 1, nil
	case ActionDecrement:
		return current - 1, nil
	case ActionSet:
		return up.Quantity, nil
	default:
		return 0, fmt.Errorf("invalid action %q", up.Action)
	}
}

func stockErr(name string, requested, available int) error {
	return fmt.Errorf("%w for %q: requested %d, available %d", ErrInsufficientStock, name, requested, available)
}
