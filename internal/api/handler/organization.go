package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/organization"
)

type orgResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Settings  json.RawMessage `json:"settings"`
	LogoURL   *string         `json:"logoUrl,omitempty"`
	Disabled  bool            `json:"disabled"`
	CreatedAt string          `json:"createdAt"`
}

type updateSettingsRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// OrganizationHandler handles the caller-organization endpoints.
type OrganizationHandler struct {
	orgRepo organization.Repository
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(orgRepo organization.Repository) *OrganizationHandler {
	return &OrganizationHandler{orgRepo: orgRepo}
}

// Get handles GET /v1/organization: the caller's own organization.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	org, err := h.orgRepo.GetByID(r.Context(), *identity.OrganizationID)
	if err != nil {
		if errors.Is(err, organization.ErrOrganizationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Organization not found", requestID)
			return
		}
		slog.Error("failed to get organization", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get organization", requestID)
		return
	}

	response.Success(w, http.StatusOK, toOrgResponse(org), requestID)
}

// UpdateSettings handles PATCH /v1/organization: replace the settings payload.
func (h *OrganizationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if len(req.Settings) == 0 {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "settings is required", requestID)
		return
	}
	var probe organization.Settings
	if err := json.Unmarshal(req.Settings, &probe); err != nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "settings must be a valid settings object", requestID)
		return
	}

	if err := h.orgRepo.UpdateSettings(r.Context(), *identity.OrganizationID, req.Settings); err != nil {
		if errors.Is(err, organization.ErrOrganizationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Organization not found", requestID)
			return
		}
		slog.Error("failed to update organization settings", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update settings", requestID)
		return
	}

	response.NoContent(w)
}

func toOrgResponse(org *organization.Organization) orgResponse {
	return orgResponse{
		ID:        org.ID,
		Name:      org.Name,
		Slug:      org.Slug,
		Settings:  org.Settings,
		LogoURL:   org.LogoURL,
		Disabled:  org.Disabled,
		CreatedAt: org.CreatedAt.UTC().Format(time.RFC3339),
	}
}
