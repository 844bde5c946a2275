package organization

import (
	"context"
	"errors"
)

// ErrOrganizationNotFound is returned when an organization record is not found.
var ErrOrganizationNotFound = errors.New("organization not found")

// ErrDuplicateSlug is returned when an organization with the same slug already exists.
var ErrDuplicateSlug = errors.New("organization slug already exists")

// Repository provides operations on the organizations table.
type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id int64) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
	UpdateSettings(ctx context.Context, id int64, settings []byte) error
	SetDisabled(ctx context.Context, id int64, disabled bool) error
}
