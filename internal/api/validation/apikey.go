package validation

import (
	"strings"
	"time"
)

// CreateKeyRequest mirrors the fields needed for key creation validation.
type CreateKeyRequest struct {
	Name      string
	Scopes    []string
	ExpiresAt string
}

var allowedKeyScopes = map[string]bool{"read": true, "write": true}

// ValidateCreateKeyRequest validates the fields of a create key request.
func ValidateCreateKeyRequest(req CreateKeyRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	for _, s := range req.Scopes {
		if !allowedKeyScopes[s] {
			errs = append(errs, FieldError{Field: "scopes", Message: "scopes may only contain read and write"})
			break
		}
	}

	if req.ExpiresAt != "" {
		if _, err := time.Parse(time.RFC3339, req.ExpiresAt); err != nil {
			errs = append(errs, FieldError{Field: "expiresAt", Message: "expiresAt must be an RFC 3339 timestamp"})
		}
	}

	return errs
}
