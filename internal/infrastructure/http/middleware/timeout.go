package middleware

import (
	"context"
	"net/http"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
)

// RequestTimeout bounds the request context of API handlers by
// cfg.RequestTimeout, so storage calls give up before the server's
// WriteTimeout cuts the connection. A zero timeout leaves the context untouched.
func RequestTimeout(cfg config.HTTPSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.RequestTimeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
