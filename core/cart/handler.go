package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/veciapp/marketplace/api/web"
	"github.com/veciapp/marketplace/api/weberr"
	"github.com/veciapp/marketplace/catalog"
	"github.com/veciapp/marketplace/core/claims"
	"github.com/veciapp/marketplace/core/combo"
	"github.com/veciapp/marketplace/validate"
)

// toWebErr translates core errors into client responses. Validation
// and stock problems surface verbatim; catalog outages collapse into a
// retriable 503 with no internal detail.
func toWebErr(err error) error {
	switch {
	case errors.Is(err, catalog.ErrUnavailable):
		return weberr.NewError(err, "catalog temporarily unavailable, please try again", http.StatusServiceUnavailable)
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrVariantNotFound),
		errors.Is(err, combo.ErrNotFound):
		return weberr.NotFound(err)
	case errors.Is(err, ErrInsufficientStock):
		return weberr.Unprocessable(err, err.Error())
	case errors.Is(err, ErrMultipleMatches),
		errors.Is(err, ErrStoreMismatch),
		errors.Is(err, ErrInvalidSKU),
		errors.Is(err, ErrOptionsMismatch),
		errors.Is(err, ErrNoOptions),
		errors.Is(err, combo.ErrSelectionRequired),
		errors.Is(err, combo.ErrInvalidSelection):
		return weberr.NewError(err, err.Error(), http.StatusBadRequest)
	}
	return err
}

func HandleList(db *sqlx.DB, cat catalog.Getter) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		carts, err := ListActive(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		views := make([]View, 0, len(carts))
		for _, c := range carts {
			items, err := FetchItems(ctx, db, c.ID)
			if err != nil {
				return err
			}
			c.Items = items
			views = append(views, NewView(ctx, cat, c))
		}

		return web.Respond(ctx, w, views, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB, cat catalog.Getter) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		cartID := web.Param(r, "id")
		if err := validate.CheckID(cartID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := FetchOwned(ctx, db, cartID, clm.UserID)
		if err != nil {
			return toWebErr(err)
		}

		items, err := FetchItems(ctx, db, c.ID)
		if err != nil {
			return err
		}
		c.Items = items

		return web.Respond(ctx, w, NewView(ctx, cat, c), http.StatusOK)
	}
}

func HandleDeactivate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		cartID := web.Param(r, "id")
		if err := validate.CheckID(cartID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := FetchOwned(ctx, db, cartID, clm.UserID); err != nil {
			return toWebErr(err)
		}

		if err := Deactivate(ctx, db, cartID); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleClear(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		cartID := web.Param(r, "id")
		if err := validate.CheckID(cartID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := Clear(ctx, db, clm.UserID, cartID)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"cart_id": c.ID,
			"action":  "clear",
			"outcome": "ok",
		}).Info("cart cleared")

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleAddItem(db *sqlx.DB, cat catalog.Getter, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var ni ItemNew
		if err := web.Decode(w, r, &ni); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(ni); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := AddItem(ctx, db, cat, clm.UserID, ni)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"cart_id": c.ID,
			"sku":     ni.SKU,
			"action":  "add_item",
			"outcome": "ok",
		}).Info("cart item added")

		return web.Respond(ctx, w, NewView(ctx, cat, c), http.StatusOK)
	}
}

func HandleUpdateQuantity(db *sqlx.DB, cat catalog.Getter, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var up QuantityUpdate
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := UpdateQuantity(ctx, db, cat, clm.UserID, up)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"cart_id": c.ID,
			"sku":     up.SKU,
			"action":  up.Action,
			"outcome": "ok",
		}).Info("cart quantity updated")

		return web.Respond(ctx, w, NewView(ctx, cat, c), http.StatusOK)
	}
}

func HandleRemoveItem(db *sqlx.DB, cat catalog.Getter, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var rm ItemRemove
		if err := web.Decode(w, r, &rm); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(rm); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, empty, err := RemoveItem(ctx, db, cat, clm.UserID, rm)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"cart_id": c.ID,
			"sku":     rm.SKU,
			"action":  "remove_item",
			"outcome": "ok",
		}).Info("cart item removed")

		if empty {
			return web.Respond(ctx, w, struct {
				Cart *View `json:"cart"`
			}{nil}, http.StatusOK)
		}

		view := NewView(ctx, cat, c)
		return web.Respond(ctx, w, struct {
			Cart *View `json:"cart"`
		}{&view}, http.StatusOK)
	}
}

func HandleAddCombo(db *sqlx.DB, cat catalog.Getter, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var req combo.AddRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := AddCombo(ctx, db, cat, clm.UserID, req)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"cart_id":  c.ID,
			"combo_id": req.ComboID,
			"action":   "add_combo",
			"outcome":  "ok",
		}).Info("combo added to cart")

		return web.Respond(ctx, w, NewView(ctx, cat, c), http.StatusOK)
	}
}
