package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/principal"
)

type updatePrincipalRequest struct {
	Administrator *bool `json:"administrator"`
	Disabled      *bool `json:"disabled"`
}

// PrincipalHandler handles principal administration within one organization.
type PrincipalHandler struct {
	principalRepo principal.Repository
}

// NewPrincipalHandler creates a new PrincipalHandler.
func NewPrincipalHandler(repo principal.Repository) *PrincipalHandler {
	return &PrincipalHandler{principalRepo: repo}
}

// List handles GET /v1/principals for the caller's organization.
func (h *PrincipalHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	principals, err := h.principalRepo.ListByOrganization(r.Context(), *identity.OrganizationID)
	if err != nil {
		slog.Error("failed to list principals", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list principals", requestID)
		return
	}

	items := make([]principalResponse, 0, len(principals))
	for i := range principals {
		items = append(items, toPrincipalResponse(&principals[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// Update handles PATCH /v1/principals/{id}: administrator/disabled flags,
// scoped to the caller's organization. A principal of another organization
// matches zero rows and answers 404.
func (h *PrincipalHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be an integer", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updatePrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if req.Administrator == nil && req.Disabled == nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "administrator or disabled is required", requestID)
		return
	}

	if identity.Principal != nil && identity.Principal.ID == id {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Cannot change your own flags", requestID)
		return
	}

	p, err := h.principalRepo.UpdateFlags(r.Context(), *identity.OrganizationID, id, principal.Flags{
		Administrator: req.Administrator,
		Disabled:      req.Disabled,
	})
	if err != nil {
		if errors.Is(err, principal.ErrPrincipalNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Principal not found", requestID)
			return
		}
		slog.Error("failed to update principal", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update principal", requestID)
		return
	}

	response.Success(w, http.StatusOK, toPrincipalResponse(p), requestID)
}
