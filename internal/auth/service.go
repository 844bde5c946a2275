package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orbitcrm/orbit/internal/organization"
	"github.com/orbitcrm/orbit/internal/principal"
)

// ErrInvalidCredential is the uniform rejection for every authentication
// failure: unknown, revoked, expired, disabled. Callers never learn which.
var ErrInvalidCredential = errors.New("invalid or expired credential")

// Credential family prefixes. Anything without either prefix is treated as a
// session token and delegated to JWT verification.
const (
	MasterKeyPrefix       = "orb_m_"
	OrganizationKeyPrefix = "orb_o_"
)

// displayPrefixLen is how much of the secret is kept for UI listing.
const displayPrefixLen = 12

// touchTimeout bounds the fire-and-forget last_used_at stamp.
const touchTimeout = 5 * time.Second

// Service resolves bearer credentials to identities and manages API keys.
type Service struct {
	keys       KeyRepository
	principals principal.Repository
	orgs       organization.Repository
	tokens     *TokenManager
}

// NewService creates a new auth Service.
func NewService(keys KeyRepository, principals principal.Repository, orgs organization.Repository, tokens *TokenManager) *Service {
	return &Service{
		keys:       keys,
		principals: principals,
		orgs:       orgs,
		tokens:     tokens,
	}
}

// Digest computes the hex SHA-256 digest of a credential secret. The digest is
// both the storage lookup key and the rate-limit key.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// GenerateSecret creates a new API key secret for the given family: 32 random
// bytes rendered as hex behind the family prefix. Returns the plaintext
// secret, its display prefix, and its digest. The plaintext must be shown to
// the caller exactly once and is unrecoverable afterward.
func GenerateSecret(family Family) (secret, prefix, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	switch family {
	case FamilyMaster:
		secret = MasterKeyPrefix + hex.EncodeToString(b)
	case FamilyOrganization:
		secret = OrganizationKeyPrefix + hex.EncodeToString(b)
	default:
		return "", "", "", fmt.Errorf("cannot generate secret for family %q", family)
	}

	prefix = secret[:displayPrefixLen] + "…"
	digest = Digest(secret)

	return secret, prefix, digest, nil
}

// CreateKeyParams describes a key to create.
type CreateKeyParams struct {
	Name           string
	Type           Family
	OrganizationID *int64
	Scopes         []string
	ExpiresAt      *time.Time
}

// CreateKey mints and stores a new API key. The returned secret is the only
// copy of the plaintext that will ever exist.
func (s *Service) CreateKey(ctx context.Context, params CreateKeyParams) (*APIKey, string, error) {
	if params.Type == FamilyOrganization && params.OrganizationID == nil {
		return nil, "", errors.New("organization keys require an organization id")
	}
	if params.Type == FamilyMaster && params.OrganizationID != nil {
		return nil, "", errors.New("master keys cannot be bound to an organization")
	}

	if params.OrganizationID != nil {
		if _, err := s.orgs.GetByID(ctx, *params.OrganizationID); err != nil {
			return nil, "", err
		}
	}

	secret, prefix, digest, err := GenerateSecret(params.Type)
	if err != nil {
		return nil, "", err
	}

	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeRead, ScopeWrite}
	}

	key := &APIKey{
		Name:           params.Name,
		KeyDigest:      digest,
		KeyPrefix:      prefix,
		Type:           params.Type,
		OrganizationID: params.OrganizationID,
		Scopes:         scopes,
		ExpiresAt:      params.ExpiresAt,
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return nil, "", err
	}

	return key, secret, nil
}

// Authenticate resolves a raw bearer credential to an Identity. The "Bearer "
// marker is stripped first; the credential family is picked by prefix.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, ErrInvalidCredential
	}

	if strings.HasPrefix(raw, MasterKeyPrefix) || strings.HasPrefix(raw, OrganizationKeyPrefix) {
		return s.authenticateKey(ctx, raw)
	}
	return s.authenticateSession(ctx, raw)
}

func (s *Service) authenticateKey(ctx context.Context, secret string) (*Identity, error) {
	digest := Digest(secret)

	key, err := s.keys.GetByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrInvalidCredential
		}
		// Lookup failures (including timeouts) fail closed.
		slog.Error("api key lookup failed", "error", err)
		return nil, ErrInvalidCredential
	}

	if key.RevokedAt != nil {
		return nil, ErrInvalidCredential
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvalidCredential
	}

	if key.Type == FamilyOrganization {
		org, err := s.orgs.GetByID(ctx, *key.OrganizationID)
		if err != nil || org.Disabled {
			return nil, ErrInvalidCredential
		}
	}

	s.touchLastUsed(key)

	scopes := key.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeRead, ScopeWrite}
	}

	return &Identity{
		Family:         key.Type,
		KeyID:          key.ID,
		KeyDigest:      digest,
		OrganizationID: key.OrganizationID,
		Scopes:         scopes,
	}, nil
}

func (s *Service) authenticateSession(ctx context.Context, raw string) (*Identity, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	p, err := s.principals.GetByAuthSubject(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if p.Disabled {
		return nil, ErrInvalidCredential
	}

	org, err := s.orgs.GetByID(ctx, p.OrganizationID)
	if err != nil || org.Disabled {
		return nil, ErrInvalidCredential
	}

	orgID := p.OrganizationID
	return &Identity{
		Family:         FamilySession,
		KeyDigest:      Digest(raw),
		OrganizationID: &orgID,
		Scopes:         []string{ScopeRead, ScopeWrite},
		Principal:      p,
	}, nil
}

// touchLastUsed stamps last_used_at asynchronously. The update must never
// block or fail the authorization decision.
func (s *Service) touchLastUsed(key *APIKey) {
	id := key.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.keys.TouchLastUsed(ctx, id); err != nil {
			slog.Warn("failed to stamp api key last_used_at", "keyId", id, "error", err)
		}
	}()
}

// BootstrapMasterKey creates the initial master key if no API keys exist.
// Returns the plaintext secret (only displayed once). If keys already exist,
// returns the empty string.
func (s *Service) BootstrapMasterKey(ctx context.Context) (string, error) {
	count, err := s.keys.CountAll(ctx)
	if err != nil {
		return "", fmt.Errorf("counting api keys: %w", err)
	}
	if count > 0 {
		return "", nil
	}

	_, secret, err := s.CreateKey(ctx, CreateKeyParams{
		Name: "bootstrap master key",
		Type: FamilyMaster,
	})
	if err != nil {
		return "", fmt.Errorf("creating bootstrap master key: %w", err)
	}

	slog.Info("bootstrap master API key created", "key", secret)

	return secret, nil
}
