// Package gateway dispatches (resource, verb, filters, body) requests from
// API-key clients to scope-checked CRUD operations. The tenant filter is
// always derived from the resolved scope, never from client input.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/orbitcrm/orbit/internal/policy"
	"github.com/orbitcrm/orbit/internal/scope"
)

// ErrUnknownResource is returned for a resource name not in the registry.
var ErrUnknownResource = errors.New("unknown resource")

// ErrReadOnlyResource is returned for writes against a summary view.
var ErrReadOnlyResource = errors.New("resource is read-only")

// ErrRowNotFound is returned when a row does not exist or is outside the
// caller's tenant scope; the two are deliberately indistinguishable.
var ErrRowNotFound = errors.New("row not found")

// ErrMissingOrganization is returned when a master credential inserts without
// naming an organization.
var ErrMissingOrganization = errors.New("organization_id is required")

// InvalidColumnError reports a filter or body column outside the resource's
// whitelist.
type InvalidColumnError struct {
	Resource string
	Column   string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("column %q is not valid for resource %q", e.Column, e.Resource)
}

// Row is a generic record flowing through the gateway.
type Row map[string]any

// Store executes CRUD against the storage engine. Implementations receive
// fully resolved filters; they apply no tenant logic of their own.
type Store interface {
	Select(ctx context.Context, res Resource, filters map[string]any) ([]Row, error)
	Insert(ctx context.Context, res Resource, row Row) (Row, error)
	Update(ctx context.Context, res Resource, filters map[string]any, changes Row) (Row, error)
	Delete(ctx context.Context, res Resource, filters map[string]any) error
}

// Service is the scope-checked dispatch layer in front of a Store.
type Service struct {
	store  Store
	engine *policy.Engine
}

// NewService creates a gateway Service.
func NewService(store Store, engine *policy.Engine) *Service {
	return &Service{store: store, engine: engine}
}

// List reads rows of a resource. Organization scopes get an implicit
// organization_id filter; a client-supplied organization filter is overwritten,
// never trusted.
func (s *Service) List(ctx context.Context, sc scope.Scope, resourceName string, filters map[string]string) ([]Row, error) {
	res, ok := Lookup(resourceName)
	if !ok {
		return nil, ErrUnknownResource
	}

	resolved := make(map[string]any, len(filters)+1)
	for col, val := range filters {
		if !res.HasColumn(col) {
			return nil, &InvalidColumnError{Resource: res.Name, Column: col}
		}
		resolved[col] = val
	}
	if !sc.IsMaster {
		resolved["organization_id"] = *sc.OrganizationID
	}

	return s.store.Select(ctx, res, resolved)
}

// Create inserts a row. organization_id (and the owner column, for session
// principals) is auto-populated from the scope before the insert predicate
// runs, so policy is never bypassed by omission.
func (s *Service) Create(ctx context.Context, sc scope.Scope, resourceName string, body Row) (Row, error) {
	res, ok := Lookup(resourceName)
	if !ok {
		return nil, ErrUnknownResource
	}
	if res.ReadOnly {
		return nil, ErrReadOnlyResource
	}

	row := make(Row, len(body)+2)
	for col, val := range body {
		if col == "id" || !res.HasColumn(col) {
			return nil, &InvalidColumnError{Resource: res.Name, Column: col}
		}
		row[col] = val
	}

	// Auto-population. Organization scopes always write into their own
	// tenant regardless of what the client supplied; master keys must name
	// the target organization explicitly.
	if !sc.IsMaster {
		row["organization_id"] = *sc.OrganizationID
		if res.OwnerColumn != "" && sc.SalesID != nil {
			if _, set := row[res.OwnerColumn]; !set {
				row[res.OwnerColumn] = *sc.SalesID
			}
		}
	}

	rowOrg, ok := rowOrganization(row)
	if !ok {
		return nil, ErrMissingOrganization
	}
	if !s.engine.Allow(sc, rowOrg, policy.ActionInsert) {
		if rowOrg == nil {
			return nil, ErrMissingOrganization
		}
		return nil, ErrRowNotFound
	}

	return s.store.Insert(ctx, res, row)
}

// Update mutates a row by id. Organization scopes filter on id AND
// organization_id, so a cross-tenant id matches zero rows instead of erroring.
func (s *Service) Update(ctx context.Context, sc scope.Scope, resourceName, id string, body Row) (Row, error) {
	res, ok := Lookup(resourceName)
	if !ok {
		return nil, ErrUnknownResource
	}
	if res.ReadOnly {
		return nil, ErrReadOnlyResource
	}

	changes := make(Row, len(body))
	for col, val := range body {
		if col == "id" || col == "organization_id" || !res.HasColumn(col) {
			return nil, &InvalidColumnError{Resource: res.Name, Column: col}
		}
		changes[col] = val
	}

	return s.store.Update(ctx, res, s.idFilters(sc, id), changes)
}

// Delete removes a row by id under the same fail-closed filtering as Update.
func (s *Service) Delete(ctx context.Context, sc scope.Scope, resourceName, id string) error {
	res, ok := Lookup(resourceName)
	if !ok {
		return ErrUnknownResource
	}
	if res.ReadOnly {
		return ErrReadOnlyResource
	}

	return s.store.Delete(ctx, res, s.idFilters(sc, id))
}

func (s *Service) idFilters(sc scope.Scope, id string) map[string]any {
	filters := map[string]any{"id": id}
	if !sc.IsMaster {
		filters["organization_id"] = *sc.OrganizationID
	}
	return filters
}

// rowOrganization extracts the to-be-written organization_id from a row. The
// second return is false when the value is present but not numeric.
func rowOrganization(row Row) (*int64, bool) {
	v, present := row["organization_id"]
	if !present || v == nil {
		return nil, true
	}
	switch n := v.(type) {
	case int64:
		return &n, true
	case int:
		id := int64(n)
		return &id, true
	case float64:
		id := int64(n)
		return &id, true
	default:
		return nil, false
	}
}
