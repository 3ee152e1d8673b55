// Package auth guards endpoints that require an authenticated account, such
// as escrow registration. Recovery endpoints stay public: the caller has, by
// definition, lost access to their credentials.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"keyhaven/pkg/requestcontext"
)

// TokenValidator validates bearer tokens and returns the claims we care about.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the claims expected from the token validator.
type Claims struct {
	AccountEmail string
	SessionID    string
}

type contextKeyAccountEmail struct{}

// ContextKeyAccountEmail is exported for tests that build contexts directly.
var ContextKeyAccountEmail = contextKeyAccountEmail{}

// AccountEmail retrieves the authenticated account email from the context.
func AccountEmail(ctx context.Context) string {
	email, ok := ctx.Value(ContextKeyAccountEmail).(string)
	if !ok {
		return ""
	}
	return email
}

// WithAccountEmail injects an account email, for service and handler tests.
func WithAccountEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ContextKeyAccountEmail, email)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated account email in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyAccountEmail, claims.AccountEmail)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
