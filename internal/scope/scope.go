// Package scope defines the per-request tenant scope derived from the
// authenticated credential. The scope is computed exactly once per request and
// threaded explicitly through the data-access layer; it is never built from
// client-supplied request parameters.
package scope

import "context"

// Scope is the resolved tenant scope for a single request.
//
// IsMaster signals "bypass the tenant filter", not "no organization": a master
// credential may read and write rows in any organization but must still name
// one explicitly when inserting. OrganizationID is nil only for master scopes.
// SalesID is the owning principal for session credentials and nil for API keys.
type Scope struct {
	IsMaster       bool
	OrganizationID *int64
	SalesID        *int64
}

// Master returns the unrestricted scope used by master credentials.
func Master() Scope {
	return Scope{IsMaster: true}
}

// Organization returns a scope bound to a single organization.
func Organization(orgID int64) Scope {
	return Scope{OrganizationID: &orgID}
}

// Session returns a scope bound to an organization and an owning principal.
func Session(orgID, salesID int64) Scope {
	return Scope{OrganizationID: &orgID, SalesID: &salesID}
}

type contextKey struct{}

// WithContext returns a context carrying the given scope.
func WithContext(ctx context.Context, sc Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext retrieves the scope stored by WithContext. The second return is
// false when no scope has been resolved for this request.
func FromContext(ctx context.Context) (Scope, bool) {
	sc, ok := ctx.Value(contextKey{}).(Scope)
	return sc, ok
}
