package middleware

import (
	"net/http"

	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/auth"
)

// RequireAdmin returns middleware that rejects callers who are not
// administrator principals of their organization. API keys are not
// administrators; key management always requires a human (or service-account)
// session.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A bearer credential is required", requestID)
				return
			}

			if identity.Family != auth.FamilySession || identity.Principal == nil || !identity.Principal.Administrator {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Administrator access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireMaster returns middleware that rejects everything but master
// credentials. Used by the cross-tenant provisioning endpoints.
func RequireMaster() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A bearer credential is required", requestID)
				return
			}

			if identity.Family != auth.FamilyMaster {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Master credential required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerbScope returns middleware mapping the HTTP verb to the credential
// scope it needs: read for GET/HEAD, write for everything mutating. A valid
// credential without the scope gets a 403, distinct from the 401 taxonomy.
func RequireVerbScope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A bearer credential is required", requestID)
				return
			}

			required := auth.ScopeWrite
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				required = auth.ScopeRead
			}

			if !identity.HasScope(required) {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Credential lacks the "+required+" scope", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
