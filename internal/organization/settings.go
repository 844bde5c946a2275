package organization

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Option is a labeled value used by settings option lists.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ColorOption is an Option with a display color.
type ColorOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Settings is the per-organization configuration bundle stored in the
// organizations.settings column. New organizations are seeded with
// DefaultSettings; clients fall back to the defaults for any list the
// organization has not customized.
type Settings struct {
	Title                string        `json:"title"`
	CompanySectors       []string      `json:"companySectors"`
	DealCategories       []string      `json:"dealCategories"`
	DealStages           []Option      `json:"dealStages"`
	DealPipelineStatuses []string      `json:"dealPipelineStatuses"`
	NoteStatuses         []ColorOption `json:"noteStatuses"`
	TaskTypes            []string      `json:"taskTypes"`
	ContactGenders       []Option      `json:"contactGenders"`
}

// DefaultSettings returns the seed configuration for a new organization.
func DefaultSettings() Settings {
	return Settings{
		Title: "CRM",
		CompanySectors: []string{
			"Communication Services", "Consumer Discretionary", "Consumer Staples",
			"Energy", "Financials", "Health Care", "Industrials",
			"Information Technology", "Materials", "Real Estate", "Utilities",
		},
		DealCategories: []string{
			"Other", "Copywriting", "Print project", "UI Design", "Website design",
		},
		DealStages: []Option{
			{Value: "opportunity", Label: "Opportunity"},
			{Value: "proposal-sent", Label: "Proposal Sent"},
			{Value: "in-negotiation", Label: "In Negotiation"},
			{Value: "won", Label: "Won"},
			{Value: "lost", Label: "Lost"},
			{Value: "delayed", Label: "Delayed"},
		},
		DealPipelineStatuses: []string{"won"},
		NoteStatuses: []ColorOption{
			{Value: "cold", Label: "Cold", Color: "#7dbde8"},
			{Value: "warm", Label: "Warm", Color: "#e8cb7d"},
			{Value: "hot", Label: "Hot", Color: "#e88b7d"},
			{Value: "in-contract", Label: "In Contract", Color: "#a4e87d"},
		},
		TaskTypes: []string{
			"None", "Email", "Demo", "Lunch", "Meeting",
			"Follow-up", "Thank you", "Ship", "Call",
		},
		ContactGenders: []Option{
			{Value: "male", Label: "He/Him"},
			{Value: "female", Label: "She/Her"},
			{Value: "nonbinary", Label: "They/Them"},
		},
	}
}

// DefaultSettingsJSON returns DefaultSettings marshaled for storage.
func DefaultSettingsJSON() json.RawMessage {
	b, err := json.Marshal(DefaultSettings())
	if err != nil {
		// Settings contains only marshalable types; this cannot happen.
		panic(err)
	}
	return b
}

// Slugify derives a URL-safe unique-ish slug from an organization name.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
