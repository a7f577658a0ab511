package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Aniket7411/Gems-frontend-sub001/pkg/logger"
)

// SessionHeader carries the storefront session identifier.
const SessionHeader = "X-Session-ID"

const maxSessionIDLen = 128

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Claims represents the shopper token claims extracted by OptionalAuth.
type Claims struct {
	ShopperID string `json:"sub"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Session resolves the storefront session from the X-Session-ID header,
// issuing a new one when the client has none. The session id is echoed in the
// response so the client can keep using it.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if len(id) > maxSessionIDLen {
			writeAuthError(w, http.StatusBadRequest, "INVALID_SESSION", "session id too long")
			return
		}
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(SessionHeader, id)
		ctx := logger.WithSessionID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionIDFromContext returns the session id set by Session.
func SessionIDFromContext(ctx context.Context) string {
	return logger.SessionIDFromContext(ctx)
}

// OptionalAuth authenticates shoppers that present a bearer token. Guests
// without an Authorization header pass through unauthenticated; a malformed
// or invalid token is rejected.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			claims, err := validate(parts[1])
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithShopperID(ctx, claims.ShopperID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the authenticated shopper's claims, or nil for guests.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// ShopperIDFromContext extracts the authenticated shopper id from the request context.
func ShopperIDFromContext(ctx context.Context) string {
	return logger.ShopperIDFromContext(ctx)
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
