package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrKeyNotFound is returned when an API key record is not found.
var ErrKeyNotFound = errors.New("api key not found")

// KeyRepository provides operations on the api_keys table.
type KeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByDigest(ctx context.Context, digest string) (*APIKey, error)
	GetByID(ctx context.Context, id uuid.UUID) (*APIKey, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]APIKey, error)
	// Revoke soft-deletes a key by stamping revoked_at. Revoking an already
	// revoked key is a no-op. orgID restricts the revocation to keys of that
	// organization; nil means unrestricted (master path).
	Revoke(ctx context.Context, id uuid.UUID, orgID *int64) error
	// TouchLastUsed stamps last_used_at = now(). Called fire-and-forget after
	// successful authentication.
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
	CountAll(ctx context.Context) (int, error)
}
