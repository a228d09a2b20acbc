package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/veciapp/marketplace/api/web"
	"github.com/veciapp/marketplace/api/weberr"
	"github.com/veciapp/marketplace/core/cart"
	"github.com/veciapp/marketplace/core/claims"
	"github.com/veciapp/marketplace/core/shipping"
	"github.com/veciapp/marketplace/validate"
)

type quoteResponse struct {
	Session
	Warning string `json:"warning,omitempty"`
}

func HandleQuote(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var req QuoteRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		s, warning, err := Quote(ctx, db, clm.UserID, req)
		if err != nil {
			switch {
			case errors.Is(err, cart.ErrNotFound):
				return weberr.NotFound(err)
			case errors.Is(err, shipping.ErrNoZone),
				errors.Is(err, shipping.ErrMethodUnavailable),
				errors.Is(err, ErrStoreUnavailable):
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
			return err
		}

		log.WithFields(logrus.Fields{
			"cart_id":    s.CartID,
			"session_id": s.ID,
			"action":     "quote",
			"outcome":    "ok",
		}).Info("checkout quoted")

		return web.Respond(ctx, w, quoteResponse{Session: s, Warning: warning}, http.StatusCreated)
	}
}
