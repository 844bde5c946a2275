package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/orbitcrm/orbit/internal/principal"
	"github.com/orbitcrm/orbit/internal/scope"
)

// Family identifies the credential family a request authenticated with.
type Family string

const (
	// FamilyMaster is an API key that bypasses tenant filtering.
	FamilyMaster Family = "master"
	// FamilyOrganization is an API key bound to a single organization.
	FamilyOrganization Family = "organization"
	// FamilySession is an end-user session token (JWT).
	FamilySession Family = "session"
)

// Credential scopes grantable to API keys.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// APIKey represents a row in the api_keys table. The plaintext secret is never
// persisted; only its SHA-256 digest and a short display prefix are stored.
type APIKey struct {
	ID             uuid.UUID
	Name           string
	KeyDigest      string
	KeyPrefix      string
	Type           Family // FamilyMaster or FamilyOrganization
	OrganizationID *int64 // nil for master keys
	Scopes         []string
	CreatedAt      time.Time
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	RevokedAt      *time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	Family         Family
	KeyID          uuid.UUID // zero for session credentials
	KeyDigest      string    // rate-limit key; digest of the presented credential
	OrganizationID *int64    // nil for master
	Scopes         []string
	Principal      *principal.Principal // non-nil for session credentials
}

// Scope resolves the tenant scope for this identity. Master credentials get
// the unrestricted scope; everything else is bound to one organization.
func (id *Identity) Scope() scope.Scope {
	if id.Family == FamilyMaster {
		return scope.Master()
	}
	if id.Principal != nil {
		return scope.Session(*id.OrganizationID, id.Principal.ID)
	}
	return scope.Organization(*id.OrganizationID)
}

// HasScope reports whether the credential carries the given scope.
func (id *Identity) HasScope(s string) bool {
	for _, granted := range id.Scopes {
		if granted == s {
			return true
		}
	}
	return false
}
