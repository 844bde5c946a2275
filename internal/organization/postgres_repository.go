package organization

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new organization record.
func (r *PostgresRepository) Create(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (name, slug, settings, logo_url, disabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		org.Name, org.Slug, org.Settings, org.LogoURL, org.Disabled,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("inserting organization: %w", err)
	}

	return nil
}

// GetByID retrieves a single organization by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Organization, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetBySlug retrieves a single organization by slug.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return r.getBy(ctx, "slug = $1", slug)
}

func (r *PostgresRepository) getBy(ctx context.Context, where string, arg any) (*Organization, error) {
	query := `
		SELECT id, name, slug, settings, logo_url, disabled, created_at, updated_at
		FROM organizations
		WHERE ` + where

	var org Organization
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Settings, &org.LogoURL,
		&org.Disabled, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("querying organization: %w", err)
	}

	return &org, nil
}

// List retrieves all organizations ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Organization, error) {
	query := `
		SELECT id, name, slug, settings, logo_url, disabled, created_at, updated_at
		FROM organizations
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var org Organization
		err := rows.Scan(
			&org.ID, &org.Name, &org.Slug, &org.Settings, &org.LogoURL,
			&org.Disabled, &org.CreatedAt, &org.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning organization row: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organization rows: %w", err)
	}

	if orgs == nil {
		orgs = []Organization{}
	}

	return orgs, nil
}

// UpdateSettings replaces the settings payload for an organization.
func (r *PostgresRepository) UpdateSettings(ctx context.Context, id int64, settings []byte) error {
	query := `UPDATE organizations SET settings = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, settings)
	if err != nil {
		return fmt.Errorf("updating organization settings: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}

// SetDisabled flips the disabled flag for an organization.
func (r *PostgresRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	query := `UPDATE organizations SET disabled = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, disabled)
	if err != nil {
		return fmt.Errorf("updating organization disabled flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}
