package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartclaim/triage/internal/metrics"
)

// Metrics counts requests by chi route pattern so path parameters do not
// explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		metrics.ObserveHTTPRequest(routePattern(r), rec.statusCode())
	})
}

// routePattern is only complete after the router has dispatched r.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
