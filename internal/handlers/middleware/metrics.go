package middleware

import (
	"net/http"
	"time"
)

const unmatchedRoute = "unmatched"

type httpMetrics interface {
	ObserveHTTP(method string, route string, code int, d time.Duration)
}

// Metrics observes request duration by route pattern
// Must wrap the ServeMux directly so the matched pattern is visible after the call
func Metrics(m httpMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newRecorder(w, false)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			m.ObserveHTTP(r.Method, route, rw.status, time.Since(start))
		})
	}
}
