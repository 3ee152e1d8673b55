// Package requestid assigns every inbound request a correlation ID.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"keyhaven/pkg/requestcontext"
)

// Header is the response header carrying the request correlation ID.
const Header = "X-Request-ID"

// Middleware honors an inbound X-Request-ID when present, otherwise mints a
// new UUID, and makes the ID available to handlers via the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
