package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/veciapp/marketplace/api/middleware"
	"github.com/veciapp/marketplace/api/web"
	"github.com/veciapp/marketplace/catalog"
	"github.com/veciapp/marketplace/core/auth"
	"github.com/veciapp/marketplace/core/cart"
	"github.com/veciapp/marketplace/core/checkout"
	"github.com/veciapp/marketplace/core/order"
	"github.com/veciapp/marketplace/rate"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Catalog    catalog.Getter
	Limiter    *rate.Limiter
	UploadDir  string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate()
	limited := middleware.RateLimit(cfg.Limiter)

	a.Handle(http.MethodGet, "/carts", cart.HandleList(cfg.DB, cfg.Catalog), authen)
	a.Handle(http.MethodGet, "/carts/{id}", cart.HandleShow(cfg.DB, cfg.Catalog), authen)
	a.Handle(http.MethodDelete, "/carts/{id}", cart.HandleDeactivate(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/carts/{id}/items", cart.HandleClear(cfg.DB, cfg.Log), authen)

	a.Handle(http.MethodPut, "/cart/items", cart.HandleAddItem(cfg.DB, cfg.Catalog, cfg.Log), authen, limited)
	a.Handle(http.MethodPost, "/cart/items/quantity", cart.HandleUpdateQuantity(cfg.DB, cfg.Catalog, cfg.Log), authen, limited)
	a.Handle(http.MethodPost, "/cart/items/remove", cart.HandleRemoveItem(cfg.DB, cfg.Catalog, cfg.Log), authen, limited)
	a.Handle(http.MethodPost, "/cart/combos", cart.HandleAddCombo(cfg.DB, cfg.Catalog, cfg.Log), authen, limited)

	a.Handle(http.MethodPost, "/checkout", checkout.HandleQuote(cfg.DB, cfg.Log), authen, limited)

	a.Handle(http.MethodPost, "/orders", order.HandleCreate(cfg.DB, cfg.Log), authen, limited)
	a.Handle(http.MethodGet, "/orders", order.HandleListOwn(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShowOwn(cfg.DB), authen)
	a.Handle(http.MethodPost, "/orders/{id}/proof", order.HandleUploadProof(cfg.DB, cfg.UploadDir, cfg.Log), authen, limited)

	a.Handle(http.MethodGet, "/stores/{store_id}/orders", order.HandleListByStore(cfg.DB), authen)
	a.Handle(http.MethodGet, "/admin/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPatch, "/admin/orders/{id}", order.HandleUpdateStatus(cfg.DB, cfg.Log), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
