package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps action request bodies. Every action payload is a
// handful of IDs and short strings.
const DefaultMaxBodySize int64 = 64 << 10

// RequestSize wraps the body in http.MaxBytesReader. Handlers see a
// *http.MaxBytesError from their decoder once the limit is crossed.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
