package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/precipgrid/precipgrid/pkg/types"
	"github.com/precipgrid/precipgrid/worker/internal/metrics"
)

// RequireAPIKey wraps next with API key authentication.
//
// Behaviour:
//   - If mode != "apikey" or key == "", every request passes through.
//   - GET /health always passes so the dispatcher can probe before auth.
//   - Otherwise the value of header must equal key; a missing or wrong key
//     is answered with 401 and counted as an unauthorized error.
func RequireAPIKey(mode, header, key string, counters *metrics.Counters, next http.Handler) http.Handler {
	if mode != "apikey" || key == "" {
		return next
	}
	want := []byte(key)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == types.HealthPath {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			counters.ObserveError(metrics.ReasonUnauthorized)
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
