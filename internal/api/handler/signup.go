package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/api/validation"
	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/onboarding"
	"github.com/orbitcrm/orbit/internal/organization"
	"github.com/orbitcrm/orbit/internal/principal"
)

type signupRequest struct {
	Subject          string `json:"subject"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	OrganizationID   *int64 `json:"organizationId"`
	OrganizationName string `json:"organizationName"`
	Administrator    bool   `json:"administrator"`
}

type principalResponse struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	OrganizationID int64  `json:"organizationId"`
	Administrator  bool   `json:"administrator"`
	Disabled       bool   `json:"disabled"`
	ServiceAccount bool   `json:"serviceAccount"`
	CreatedAt      string `json:"createdAt"`
}

type signupResponse struct {
	Principal    principalResponse `json:"principal"`
	Organization orgResponse       `json:"organization"`
	SessionToken string            `json:"sessionToken"`
}

// SignupHandler handles POST /v1/signup, the identity-creation hook.
type SignupHandler struct {
	onboarding *onboarding.Service
	tokens     *auth.TokenManager
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(svc *onboarding.Service, tokens *auth.TokenManager) *SignupHandler {
	return &SignupHandler{onboarding: svc, tokens: tokens}
}

// ServeHTTP runs the onboarding state machine for a new identity.
func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateSignupRequest(validation.SignupRequest{
		AuthSubject:      req.Subject,
		Email:            req.Email,
		OrganizationName: req.OrganizationName,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	result, err := h.onboarding.Signup(r.Context(), onboarding.SignupRequest{
		AuthSubject:      strings.TrimSpace(req.Subject),
		Email:            strings.TrimSpace(req.Email),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		OrganizationID:   req.OrganizationID,
		OrganizationName: req.OrganizationName,
		Administrator:    req.Administrator,
	})
	if err != nil {
		switch {
		case errors.Is(err, onboarding.ErrSignupNotAllowed):
			response.Err(w, http.StatusForbidden, "FORBIDDEN", "Signup requires an invitation or an explicit new organization", requestID)
		case errors.Is(err, organization.ErrOrganizationNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Organization not found", requestID)
		case errors.Is(err, organization.ErrDuplicateSlug):
			response.Err(w, http.StatusConflict, "CONFLICT", "An organization with that name already exists", requestID)
		case errors.Is(err, principal.ErrDuplicateSubject):
			response.Err(w, http.StatusConflict, "CONFLICT", "A principal already exists for that subject", requestID)
		default:
			slog.Error("signup failed", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), requestID)
		}
		return
	}

	token, err := h.tokens.Mint(result.Principal)
	if err != nil {
		slog.Error("failed to mint session token", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue session token", requestID)
		return
	}

	response.Success(w, http.StatusCreated, signupResponse{
		Principal:    toPrincipalResponse(result.Principal),
		Organization: toOrgResponse(result.Organization),
		SessionToken: token,
	}, requestID)
}

func toPrincipalResponse(p *principal.Principal) principalResponse {
	return principalResponse{
		ID:             p.ID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		OrganizationID: p.OrganizationID,
		Administrator:  p.Administrator,
		Disabled:       p.Disabled,
		ServiceAccount: p.ServiceAccount,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
