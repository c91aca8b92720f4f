package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID tags every request with an id, minting one when the client did
// not send its own. Error responses echo it back so a support report can be
// matched to server logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
