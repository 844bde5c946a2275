package gateway

// Resource describes a table or view exposed through the gateway. Columns is
// the whitelist of filterable/writable columns; anything else in a filter or
// body is rejected before SQL is built.
type Resource struct {
	Name        string
	Table       string
	ReadOnly    bool   // summary views accept no writes
	OwnerColumn string // owning-principal column, "" if none
	Columns     []string
}

// HasColumn reports whether col is in the resource's whitelist. id and
// organization_id are always addressable.
func (r Resource) HasColumn(col string) bool {
	if col == "id" || col == "organization_id" {
		return true
	}
	for _, c := range r.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// registry lists every resource reachable through the gateway. All of them are
// tenant-scoped; adding a resource here is what opts it into implicit
// filtering and auto-population, so there is no per-table trigger to forget.
var registry = map[string]Resource{
	"companies": {
		Name: "companies", Table: "companies", OwnerColumn: "sales_id",
		Columns: []string{
			"name", "sector", "size", "website", "linkedin_url", "phone_number",
			"address", "city", "zipcode", "state_abbr", "description", "sales_id",
		},
	},
	"contacts": {
		Name: "contacts", Table: "contacts", OwnerColumn: "sales_id",
		Columns: []string{
			"first_name", "last_name", "gender", "title", "email", "phone_number",
			"background", "status", "has_newsletter", "company_id", "sales_id",
		},
	},
	"contact_notes": {
		Name: "contact_notes", Table: "contact_notes", OwnerColumn: "sales_id",
		Columns: []string{"contact_id", "text", "status", "date", "sales_id"},
	},
	"deals": {
		Name: "deals", Table: "deals", OwnerColumn: "sales_id",
		Columns: []string{
			"name", "company_id", "category", "stage", "description", "amount",
			"expected_closing_date", "sales_id",
		},
	},
	"deal_notes": {
		Name: "deal_notes", Table: "deal_notes", OwnerColumn: "sales_id",
		Columns: []string{"deal_id", "text", "date", "sales_id"},
	},
	"tasks": {
		Name: "tasks", Table: "tasks", OwnerColumn: "sales_id",
		Columns: []string{"contact_id", "type", "text", "due_date", "done_date", "sales_id"},
	},
	"tags": {
		Name: "tags", Table: "tags",
		Columns: []string{"name", "color"},
	},
	"companies_summary": {
		Name: "companies_summary", Table: "companies_summary", ReadOnly: true,
		Columns: []string{"name", "sector", "sales_id", "nb_contacts", "nb_deals"},
	},
	"contacts_summary": {
		Name: "contacts_summary", Table: "contacts_summary", ReadOnly: true,
		Columns: []string{
			"first_name", "last_name", "email", "company_id", "company_name",
			"status", "sales_id", "nb_tasks",
		},
	},
}

// Lookup resolves a resource name.
func Lookup(name string) (Resource, bool) {
	r, ok := registry[name]
	return r, ok
}
