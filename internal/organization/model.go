package organization

import (
	"encoding/json"
	"time"
)

// Organization represents a row in the organizations table. It is the tenant
// root: every tenant-scoped row references exactly one organization.
type Organization struct {
	ID        int64
	Name      string
	Slug      string
	Settings  json.RawMessage
	LogoURL   *string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
