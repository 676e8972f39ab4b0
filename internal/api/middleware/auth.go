package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/perkhub/coffee-shop-backend/internal/auth"
	"github.com/perkhub/coffee-shop-backend/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller, stored in the request context
// by RequireAuth.
type Identity struct {
	UserID int
	Email  string
	Role   models.Role
}

// IdentityFrom returns the caller's identity, false when the request
// did not pass RequireAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireAuth validates the Authorization bearer token and stores the
// caller's identity in the context.
func RequireAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := tokens.VerifyAccess(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			role, err := models.ParseRole(claims.Role)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			identity := Identity{UserID: userID, Email: claims.Email, Role: role}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

// RequireAdmin gates a route group on the admin role. It must run
// after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			unauthorized(w, "missing bearer token")
			return
		}
		if identity.Role != models.RoleAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
