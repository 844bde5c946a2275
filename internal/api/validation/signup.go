package validation

import "strings"

// SignupRequest mirrors the fields needed for signup validation.
type SignupRequest struct {
	AuthSubject      string
	Email            string
	OrganizationName string
}

// ValidateSignupRequest validates the fields of a signup request.
func ValidateSignupRequest(req SignupRequest) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(req.AuthSubject) == "" {
		errs = append(errs, FieldError{Field: "subject", Message: "subject is required"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if !strings.Contains(email, "@") {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}

	if len(strings.TrimSpace(req.OrganizationName)) > 255 {
		errs = append(errs, FieldError{Field: "organizationName", Message: "organizationName must be at most 255 characters"})
	}

	return errs
}
