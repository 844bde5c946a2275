// Package policy implements row-level access decisions for tenant-scoped
// tables. Authorization is modeled as a flat list of independent allow
// predicates combined with logical OR, so new bypass classes can be added
// without touching the tenant-isolation predicate.
package policy

import "github.com/orbitcrm/orbit/internal/scope"

// Action identifies the table operation being authorized.
type Action int

const (
	ActionSelect Action = iota
	ActionInsert
	ActionUpdate
	ActionDelete
)

// String returns the lowercase SQL-style name of the action.
func (a Action) String() string {
	switch a {
	case ActionSelect:
		return "select"
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Predicate is a single allow rule. rowOrg is the organization_id of the row
// under evaluation: for inserts it is the to-be-written value after
// auto-population, and nil means the row has no organization at all.
type Predicate func(sc scope.Scope, rowOrg *int64, action Action) bool

// TenantMatch allows an operation when the row belongs to the scope's
// organization. It never passes for a master scope, which carries no
// organization of its own.
func TenantMatch(sc scope.Scope, rowOrg *int64, _ Action) bool {
	if sc.OrganizationID == nil || rowOrg == nil {
		return false
	}
	return *rowOrg == *sc.OrganizationID
}

// MasterBypass allows any operation for a master scope. Inserts still require
// an explicit organization on the row: a master key writes into a named
// tenant, never into no tenant.
func MasterBypass(sc scope.Scope, rowOrg *int64, action Action) bool {
	if !sc.IsMaster {
		return false
	}
	if action == ActionInsert {
		return rowOrg != nil
	}
	return true
}

// Engine evaluates a predicate list with OR semantics.
type Engine struct {
	predicates []Predicate
}

// NewEngine creates an engine from the given predicates.
func NewEngine(predicates ...Predicate) *Engine {
	return &Engine{predicates: predicates}
}

// Default returns the engine used by the gateway: tenant isolation plus the
// master bypass.
func Default() *Engine {
	return NewEngine(TenantMatch, MasterBypass)
}

// Allow reports whether any predicate permits the operation.
func (e *Engine) Allow(sc scope.Scope, rowOrg *int64, action Action) bool {
	for _, p := range e.predicates {
		if p(sc, rowOrg, action) {
			return true
		}
	}
	return false
}
