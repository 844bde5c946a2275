package principal

import "time"

// Principal represents a row in the sales table: an authenticated identity
// bound to exactly one organization for its lifetime.
type Principal struct {
	ID             int64
	AuthSubject    string
	FirstName      string
	LastName       string
	Email          string
	OrganizationID int64
	Administrator  bool
	Disabled       bool
	ServiceAccount bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
