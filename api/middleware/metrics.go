package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
)

// Metrics records request counts and latency labelled by chi route pattern so
// ids in the path do not explode label cardinality.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			if route == r.URL.Path {
				// unmatched paths collapse into one series
				route = "unmatched"
			}
			m.Observe(route, r.Method, status, time.Since(start))
		})
	}
}
