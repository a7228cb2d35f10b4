package middleware

import "net/http"

// DefaultMaxBodyBytes is the request body limit used when none is configured (1MB).
const DefaultMaxBodyBytes = 1 << 20

// MaxBodySize returns middleware that limits request bodies to max bytes. Snapshot
// pushes use the same limit; larger feeds belong on the websocket.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
