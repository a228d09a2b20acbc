package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/veciapp/marketplace/api/web"
	"github.com/veciapp/marketplace/api/weberr"
	"github.com/veciapp/marketplace/core/claims"
	"github.com/veciapp/marketplace/rate"
)

// RateLimit throttles per actor: by user id when authenticated, by
// remote address otherwise.
func RateLimit(lm *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			key := r.RemoteAddr
			if clm, err := claims.Get(ctx); err == nil {
				key = clm.UserID
			}

			if !lm.Check(key) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, "too many requests", http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
