package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/validate"
)

// FetchActive returns the single live cart for the user and store.
func FetchActive(ctx context.Context, db sqlx.ExtContext, userID, storeID string) (Cart, error) {
	const q = `
	SELECT * FROM carts
	WHERE user_id = $1 AND store_id = $2 AND is_active`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, userID, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("fetching active cart: %w", err)
	}

	return c, nil
}

// FetchOwned returns the user's cart by id regardless of activity.
func FetchOwned(ctx context.Context, db sqlx.ExtContext, cartID, userID string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE cart_id = $1 AND user_id = $2`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, cartID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("fetching cart[%s]: %w", cartID, err)
	}

	return c, nil
}

// ListActive returns all live carts of the user across stores.
func ListActive(ctx context.Context, db sqlx.ExtContext, userID string) ([]Cart, error) {
	const q = `SELECT * FROM carts WHERE user_id = $1 AND is_active ORDER BY updated_at DESC`

	carts := []Cart{}
	if err := sqlx.SelectContext(ctx, db, &carts, q, userID); err != nil {
		return nil, fmt.Errorf("listing carts: %w", err)
	}

	return carts, nil
}

// lockActive takes the row lock that serializes concurrent mutations
// against the same live cart, creating the cart first when the user
// has none for the store.
func lockActive(ctx context.Context, tx sqlx.ExtContext, userID, storeID string) (Cart, error) {
	const insert = `
	INSERT INTO carts (cart_id, user_id, store_id, items_subtotal, total, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, 0, 0, TRUE, $4, $4)
	ON CONFLICT DO NOTHING`

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, insert, validate.GenerateID(), userID, storeID, now); err != nil {
		return Cart{}, fmt.Errorf("creating cart: %w", err)
	}

	const lock = `
	SELECT * FROM carts
	WHERE user_id = $1 AND store_id = $2 AND is_active
	FOR UPDATE`

	var c Cart
	if err := sqlx.GetContext(ctx, tx, &c, lock, userID, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("locking cart: %w", err)
	}

	return c, nil
}

// lockExisting is lockActive without the create step, for mutations
// that require the cart to already exist.
func lockExisting(ctx context.Context, tx sqlx.ExtContext, userID, storeID string) (Cart, error) {
	const lock = `
	SELECT * FROM carts
	WHERE user_id = $1 AND store_id = $2 AND is_active
	FOR UPDATE`

	var c Cart
	if err := sqlx.GetContext(ctx, tx, &c, lock, userID, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("locking cart: %w", err)
	}

	return c, nil
}

// lockByID locks the user's live cart by id, for mutations addressed
// to a specific cart rather than a store.
func lockByID(ctx context.Context, tx sqlx.ExtContext, cartID, userID string) (Cart, error) {
	const lock = `
	SELECT * FROM carts
	WHERE cart_id = $1 AND user_id = $2 AND is_active
	FOR UPDATE`

	var c Cart
	if err := sqlx.GetContext(ctx, tx, &c, lock, cartID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("locking cart[%s]: %w", cartID, err)
	}

	return c, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, cartID string) ([]Item, error) {
	const q = `SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY created_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, cartID); err != nil {
		return nil, fmt.Errorf("fetching items of cart[%s]: %w", cartID, err)
	}

	return items, nil
}

func insertItem(ctx context.Context, tx sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items
		(cart_item_id, cart_id, product_id, product_name, sku, quantity, price,
		 selected_options, combo_id, combo_instance_id, created_at, updated_at)
	VALUES
		(:cart_item_id, :cart_id, :product_id, :product_name, :sku, :quantity, :price,
		 :selected_options, :combo_id, :combo_instance_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, it); err != nil {
		return fmt.Errorf("inserting item[%s]: %w", it.SKU, err)
	}

	return nil
}

func updateItemQuantity(ctx context.Context, tx sqlx.ExtContext, itemID string, quantity int) error {
	const q = `UPDATE cart_items SET quantity = $2, updated_at = $3 WHERE cart_item_id = $1`

	if _, err := tx.ExecContext(ctx, q, itemID, quantity, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating quantity of item[%s]: %w", itemID, err)
	}

	return nil
}

func deleteItem(ctx context.Context, tx sqlx.ExtContext, itemID string) error {
	const q = `DELETE FROM cart_items WHERE cart_item_id = $1`

	if _, err := tx.ExecContext(ctx, q, itemID); err != nil {
		return fmt.Errorf("deleting item[%s]: %w", itemID, err)
	}

	return nil
}

// deleteStandalone removes a non-combo line with the SKU, if present.
// Add-to-cart uses it so re-adding a SKU replaces the line.
func deleteStandalone(ctx context.Context, tx sqlx.ExtContext, cartID, sku string) error {
	const q = `
	DELETE FROM cart_items
	WHERE cart_id = $1 AND sku = $2 AND combo_instance_id IS NULL`

	if _, err := tx.ExecContext(ctx, q, cartID, sku); err != nil {
		return fmt.Errorf("replacing standalone line[%s]: %w", sku, err)
	}

	return nil
}

// deleteInstance removes every line of one combo instance.
func deleteInstance(ctx context.Context, tx sqlx.ExtContext, cartID, instanceID string) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1 AND combo_instance_id = $2`

	if _, err := tx.ExecContext(ctx, q, cartID, instanceID); err != nil {
		return fmt.Errorf("deleting combo instance[%s]: %w", instanceID, err)
	}

	return nil
}

func deleteAllItems(ctx context.Context, tx sqlx.ExtContext, cartID string) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1`

	if _, err := tx.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("clearing cart[%s]: %w", cartID, err)
	}

	return nil
}

func updateTotals(ctx context.Context, tx sqlx.ExtContext, cartID string, subtotal, total decimal.Decimal) error {
	const q = `
	UPDATE carts SET items_subtotal = $2, total = $3, updated_at = $4
	WHERE cart_id = $1`

	if _, err := tx.ExecContext(ctx, q, cartID, subtotal, total, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating totals of cart[%s]: %w", cartID, err)
	}

	return nil
}

// Deactivate closes the cart. Closed carts stay readable as history.
func Deactivate(ctx context.Context, db sqlx.ExtContext, cartID string) error {
	const q = `UPDATE carts SET is_active = FALSE, updated_at = $2 WHERE cart_id = $1`

	if _, err := db.ExecContext(ctx, q, cartID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivating cart[%s]: %w", cartID, err)
	}

	return nil
}
