// Package onboarding governs how a newly created identity becomes a principal:
// invitation into an existing organization, explicit creation of a new
// organization, or the one-time bootstrap signup. Everything runs in a single
// transaction because an identity without a principal is unrecoverable for
// every later policy check.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orbitcrm/orbit/internal/database"
	"github.com/orbitcrm/orbit/internal/organization"
	"github.com/orbitcrm/orbit/internal/principal"
)

// ErrSignupNotAllowed is returned when a signup supplies no organization
// context and the system is already bootstrapped. Self-registration into an
// arbitrary tenant is never permitted.
var ErrSignupNotAllowed = errors.New("signup requires an invitation or an explicit new organization")

// DefaultOrganizationName names the organization created by the bootstrap signup.
const DefaultOrganizationName = "Default Organization"

// SignupRequest carries the identity-creation metadata.
type SignupRequest struct {
	AuthSubject      string
	Email            string
	FirstName        string
	LastName         string
	OrganizationID   *int64 // invitation path
	OrganizationName string // new-organization path
	Administrator    bool   // honored on the invitation path only
}

// SignupResult is the principal and organization the signup resolved to.
type SignupResult struct {
	Principal    *principal.Principal
	Organization *organization.Organization
	CreatedOrg   bool
}

// Service runs the onboarding state machine.
type Service struct {
	db *database.DB
}

// NewService creates an onboarding Service.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// Signup creates a principal (and possibly an organization) for a new
// identity, atomically.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	var result SignupResult

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		switch {
		case req.OrganizationID != nil:
			// Invitation path: join the inviting organization.
			org, err := getOrganization(ctx, tx, *req.OrganizationID)
			if err != nil {
				return err
			}
			p, err := createPrincipal(ctx, tx, req, org.ID, req.Administrator)
			if err != nil {
				return err
			}
			result = SignupResult{Principal: p, Organization: org}
			return nil

		case strings.TrimSpace(req.OrganizationName) != "":
			// Multi-tenant signup path: provision a fresh organization with
			// the signer as its administrator.
			org, err := createOrganization(ctx, tx, strings.TrimSpace(req.OrganizationName))
			if err != nil {
				return err
			}
			p, err := createPrincipal(ctx, tx, req, org.ID, true)
			if err != nil {
				return err
			}
			result = SignupResult{Principal: p, Organization: org, CreatedOrg: true}
			return nil

		default:
			// No organization context: only the very first signup may
			// bootstrap; everything after that is rejected.
			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM sales`).Scan(&count); err != nil {
				return fmt.Errorf("counting principals: %w", err)
			}
			if count > 0 {
				return ErrSignupNotAllowed
			}
			org, err := createOrganization(ctx, tx, DefaultOrganizationName)
			if err != nil {
				return err
			}
			p, err := createPrincipal(ctx, tx, req, org.ID, true)
			if err != nil {
				return err
			}
			result = SignupResult{Principal: p, Organization: org, CreatedOrg: true}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func getOrganization(ctx context.Context, tx pgx.Tx, id int64) (*organization.Organization, error) {
	query := `
		SELECT id, name, slug, settings, logo_url, disabled, created_at, updated_at
		FROM organizations
		WHERE id = $1 AND NOT disabled`

	var org organization.Organization
	err := tx.QueryRow(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Settings, &org.LogoURL,
		&org.Disabled, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organization.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("querying organization: %w", err)
	}
	return &org, nil
}

func createOrganization(ctx context.Context, tx pgx.Tx, name string) (*organization.Organization, error) {
	org := &organization.Organization{
		Name:     name,
		Slug:     organization.Slugify(name),
		Settings: organization.DefaultSettingsJSON(),
	}

	query := `
		INSERT INTO organizations (name, slug, settings)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(ctx, query, org.Name, org.Slug, org.Settings).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, organization.ErrDuplicateSlug
		}
		return nil, fmt.Errorf("inserting organization: %w", err)
	}

	return org, nil
}

func createPrincipal(ctx context.Context, tx pgx.Tx, req SignupRequest, orgID int64, administrator bool) (*principal.Principal, error) {
	p := &principal.Principal{
		AuthSubject:    req.AuthSubject,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		OrganizationID: orgID,
		Administrator:  administrator,
	}

	query := `
		INSERT INTO sales (auth_subject, first_name, last_name, email, organization_id, administrator)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(ctx, query,
		p.AuthSubject, p.FirstName, p.LastName, p.Email, p.OrganizationID, p.Administrator,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, principal.ErrDuplicateSubject
		}
		return nil, fmt.Errorf("inserting principal: %w", err)
	}

	return p, nil
}
