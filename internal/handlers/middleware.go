package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/talenthub/apiserver/internal/auth"
	"github.com/talenthub/apiserver/types"
)

// Authenticator resolves an Authorization header to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (types.User, error)
}

// RequireAuth rejects requests without a valid access token and stores the
// authenticated user in the request context.
func RequireAuth(gate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if err != auth.ErrUnauthenticated {
					log.Printf("[Auth] authentication failed: %v", err)
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireRoles admits only users holding one of roles. It must run after
// RequireAuth.
func RequireRoles(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			if err := auth.CheckAccess(user, roles...); err != nil {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
