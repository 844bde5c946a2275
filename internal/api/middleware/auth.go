package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/scope"
)

const identityKey contextKey = "identity"

// Authenticator resolves a raw bearer credential to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Identity, error)
}

// Auth is middleware that extracts the Authorization header, resolves it to
// an Identity, and injects both the Identity and its tenant Scope into the
// request context. Every failure surfaces as the same 401; callers never
// learn whether a credential was unknown, revoked or expired.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			raw := r.Header.Get("Authorization")
			if raw == "" {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A bearer credential is required", requestID)
				return
			}

			identity, err := authenticator.Authenticate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidCredential) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired credential", requestID)
					return
				}
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = scope.WithContext(ctx, identity.Scope())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}
