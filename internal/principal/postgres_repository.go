package principal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const principalColumns = `id, auth_subject, first_name, last_name, email,
	organization_id, administrator, disabled, service_account, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new principal record.
func (r *PostgresRepository) Create(ctx context.Context, p *Principal) error {
	query := `
		INSERT INTO sales (auth_subject, first_name, last_name, email,
			organization_id, administrator, disabled, service_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.AuthSubject, p.FirstName, p.LastName, p.Email,
		p.OrganizationID, p.Administrator, p.Disabled, p.ServiceAccount,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSubject
		}
		return fmt.Errorf("inserting principal: %w", err)
	}

	return nil
}

// GetByID retrieves a single principal by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Principal, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByAuthSubject retrieves a single principal by its external identity subject.
func (r *PostgresRepository) GetByAuthSubject(ctx context.Context, subject string) (*Principal, error) {
	return r.getBy(ctx, "auth_subject = $1", subject)
}

func (r *PostgresRepository) getBy(ctx context.Context, where string, arg any) (*Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM sales WHERE ` + where

	var p Principal
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.AuthSubject, &p.FirstName, &p.LastName, &p.Email,
		&p.OrganizationID, &p.Administrator, &p.Disabled, &p.ServiceAccount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("querying principal: %w", err)
	}

	return &p, nil
}

// ListByOrganization retrieves all principals of one organization.
func (r *PostgresRepository) ListByOrganization(ctx context.Context, orgID int64) ([]Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM sales
		WHERE organization_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing principals: %w", err)
	}
	defer rows.Close()

	var principals []Principal
	for rows.Next() {
		var p Principal
		err := rows.Scan(
			&p.ID, &p.AuthSubject, &p.FirstName, &p.LastName, &p.Email,
			&p.OrganizationID, &p.Administrator, &p.Disabled, &p.ServiceAccount,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning principal row: %w", err)
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating principal rows: %w", err)
	}

	if principals == nil {
		principals = []Principal{}
	}

	return principals, nil
}

// UpdateFlags mutates the administrator/disabled flags of a principal within
// the given organization.
func (r *PostgresRepository) UpdateFlags(ctx context.Context, orgID, id int64, flags Flags) (*Principal, error) {
	query := `
		UPDATE sales
		SET administrator = COALESCE($3, administrator),
		    disabled = COALESCE($4, disabled),
		    updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING ` + principalColumns

	var p Principal
	err := r.pool.QueryRow(ctx, query, id, orgID, flags.Administrator, flags.Disabled).Scan(
		&p.ID, &p.AuthSubject, &p.FirstName, &p.LastName, &p.Email,
		&p.OrganizationID, &p.Administrator, &p.Disabled, &p.ServiceAccount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("updating principal flags: %w", err)
	}

	return &p, nil
}

// CountAll returns the total number of principals across all organizations.
func (r *PostgresRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting principals: %w", err)
	}
	return count, nil
}
