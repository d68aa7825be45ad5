package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/loggas/loggas-backend/pkg/metrics"
)

// Metrics records latency and status per chi route pattern.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			m.Observe(r.Method, routePattern(r), defaultStatus(ww.Status()), time.Since(start))
		})
	}
}

// routePattern prefers the matched chi template so label cardinality stays
// bounded; unmatched requests fall back to the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// defaultStatus maps the zero status of a handler that never wrote to 200.
func defaultStatus(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}
