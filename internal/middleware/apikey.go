package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyHeader carries the shared secret for protected routes.
const APIKeyHeader = "X-Api-Key"

// APIKey rejects requests whose X-Api-Key header does not match key. Rejected
// requests are answered by reject so each route keeps its own error shape.
func APIKey(key string, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				slog.Warn("Unauthorized access attempt", "path", r.URL.Path, "ip", r.RemoteAddr)
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
