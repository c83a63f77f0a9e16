// Package middleware provides request body size limiting.
package middleware

import "net/http"

// DefaultMaxBodyBytes is the default max request body size (256KB). Every
// write endpoint in this API accepts a single small JSON payload (one
// transcript chunk or a demo-location seed), never a bulk upload.
const DefaultMaxBodyBytes = 256 * 1024

// MaxBodySize returns middleware that limits request body size to max bytes.
// The limit applies to every request that carries a non-nil body, whatever its method.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
