package principal

import (
	"context"
	"errors"
)

// ErrPrincipalNotFound is returned when a principal record is not found, or
// when it exists outside the caller's organization. The two cases are
// deliberately indistinguishable.
var ErrPrincipalNotFound = errors.New("principal not found")

// ErrDuplicateSubject is returned when a principal already exists for an auth subject.
var ErrDuplicateSubject = errors.New("principal already exists for subject")

// Flags is a partial update of the mutable principal flags. Nil fields are
// left unchanged.
type Flags struct {
	Administrator *bool
	Disabled      *bool
}

// Repository provides operations on the sales table.
type Repository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, id int64) (*Principal, error)
	GetByAuthSubject(ctx context.Context, subject string) (*Principal, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]Principal, error)
	// UpdateFlags mutates administrator/disabled for a principal within the
	// given organization. A principal outside that organization matches zero
	// rows and yields ErrPrincipalNotFound.
	UpdateFlags(ctx context.Context, orgID, id int64, flags Flags) (*Principal, error)
	CountAll(ctx context.Context) (int, error)
}
