package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const keyColumns = `id, name, key_digest, key_prefix, type, organization_id,
	scopes, created_at, last_used_at, expires_at, revoked_at`

// PostgresKeyRepository implements KeyRepository using pgxpool.
type PostgresKeyRepository struct {
	pool *pgxpool.Pool
}

// NewKeyRepository creates a new KeyRepository backed by the given connection pool.
func NewKeyRepository(pool *pgxpool.Pool) KeyRepository {
	return &PostgresKeyRepository{pool: pool}
}

// Create inserts a new API key record.
func (r *PostgresKeyRepository) Create(ctx context.Context, key *APIKey) error {
	query := `
		INSERT INTO api_keys (name, key_digest, key_prefix, type, organization_id, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		key.Name, key.KeyDigest, key.KeyPrefix, string(key.Type),
		key.OrganizationID, key.Scopes, key.ExpiresAt,
	).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}

	return nil
}

// GetByDigest retrieves a key by the SHA-256 digest of its secret. Revoked and
// expired keys are still returned; the service decides how to reject them.
func (r *PostgresKeyRepository) GetByDigest(ctx context.Context, digest string) (*APIKey, error) {
	return r.getBy(ctx, "key_digest = $1", digest)
}

// GetByID retrieves a key by id.
func (r *PostgresKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*APIKey, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *PostgresKeyRepository) getBy(ctx context.Context, where string, arg any) (*APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE ` + where

	var k APIKey
	var keyType string
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&k.ID, &k.Name, &k.KeyDigest, &k.KeyPrefix, &keyType, &k.OrganizationID,
		&k.Scopes, &k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt, &k.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	k.Type = Family(keyType)

	return &k, nil
}

// ListByOrganization retrieves all keys bound to one organization.
func (r *PostgresKeyRepository) ListByOrganization(ctx context.Context, orgID int64) ([]APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys
		WHERE organization_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var keyType string
		err := rows.Scan(
			&k.ID, &k.Name, &k.KeyDigest, &k.KeyPrefix, &keyType, &k.OrganizationID,
			&k.Scopes, &k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt, &k.RevokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		k.Type = Family(keyType)
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}

	if keys == nil {
		keys = []APIKey{}
	}

	return keys, nil
}

// Revoke stamps revoked_at on a key. Already-revoked keys are left untouched
// so the original revocation time is preserved.
func (r *PostgresKeyRepository) Revoke(ctx context.Context, id uuid.UUID, orgID *int64) error {
	query := `
		UPDATE api_keys
		SET revoked_at = now()
		WHERE id = $1
		  AND revoked_at IS NULL
		  AND ($2::bigint IS NULL OR organization_id = $2)`

	result, err := r.pool.Exec(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish "already revoked" (idempotent success) from "not found
		// or other tenant" (fail closed).
		var exists bool
		checkQuery := `
			SELECT EXISTS (
				SELECT 1 FROM api_keys
				WHERE id = $1 AND ($2::bigint IS NULL OR organization_id = $2)
			)`
		if err := r.pool.QueryRow(ctx, checkQuery, id, orgID).Scan(&exists); err != nil {
			return fmt.Errorf("checking api key existence: %w", err)
		}
		if !exists {
			return ErrKeyNotFound
		}
		return nil
	}

	return nil
}

// TouchLastUsed stamps last_used_at = now() for a key.
func (r *PostgresKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("stamping api key last_used_at: %w", err)
	}
	return nil
}

// CountAll returns the total number of API keys.
func (r *PostgresKeyRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting api keys: %w", err)
	}
	return count, nil
}
