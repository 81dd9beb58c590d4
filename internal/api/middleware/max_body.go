package middleware

import (
	"net/http"

	"github.com/cloo-solutions/signmaker/internal/api"
)

const msgBodyTooLarge = "request body too large"

// MaxBodyBytes rejects declared oversized bodies up front and caps the rest
// while they are read. A limit of zero or less disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
