package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/api/validation"
	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/organization"
)

type createKeyRequest struct {
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
	ExpiresAt string   `json:"expiresAt"`
}

type provisionKeyRequest struct {
	createKeyRequest
	OrganizationID int64 `json:"organizationId"`
}

type keyResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Prefix         string   `json:"prefix"`
	Type           string   `json:"type"`
	OrganizationID *int64   `json:"organizationId,omitempty"`
	Scopes         []string `json:"scopes"`
	CreatedAt      string   `json:"createdAt"`
	LastUsedAt     *string  `json:"lastUsedAt,omitempty"`
	ExpiresAt      *string  `json:"expiresAt,omitempty"`
	RevokedAt      *string  `json:"revokedAt,omitempty"`
}

type keyWithSecretResponse struct {
	keyResponse
	// Key is the plaintext secret, present exactly once in the creation
	// response and unrecoverable afterward.
	Key string `json:"key"`
}

// APIKeyHandler handles key management endpoints.
type APIKeyHandler struct {
	authService *auth.Service
	keyRepo     auth.KeyRepository
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(authService *auth.Service, keyRepo auth.KeyRepository) *APIKeyHandler {
	return &APIKeyHandler{authService: authService, keyRepo: keyRepo}
}

// Create handles POST /v1/keys: an administrator mints an organization key
// bound to their own organization.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	req, ok := h.decodeCreate(w, r, requestID)
	if !ok {
		return
	}

	h.createKey(w, r, auth.CreateKeyParams{
		Name:           strings.TrimSpace(req.Name),
		Type:           auth.FamilyOrganization,
		OrganizationID: identity.OrganizationID,
		Scopes:         req.Scopes,
		ExpiresAt:      parseExpiry(req.ExpiresAt),
	}, requestID)
}

// Provision handles POST /v1/master/keys: a master credential provisions an
// organization key for an arbitrary organization.
func (h *APIKeyHandler) Provision(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req provisionKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateKeyRequest(validation.CreateKeyRequest{
		Name: req.Name, Scopes: req.Scopes, ExpiresAt: req.ExpiresAt,
	})
	if req.OrganizationID == 0 {
		fieldErrors = append(fieldErrors, validation.FieldError{Field: "organizationId", Message: "organizationId is required"})
	}
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	orgID := req.OrganizationID
	h.createKey(w, r, auth.CreateKeyParams{
		Name:           strings.TrimSpace(req.Name),
		Type:           auth.FamilyOrganization,
		OrganizationID: &orgID,
		Scopes:         req.Scopes,
		ExpiresAt:      parseExpiry(req.ExpiresAt),
	}, requestID)
}

func (h *APIKeyHandler) createKey(w http.ResponseWriter, r *http.Request, params auth.CreateKeyParams, requestID string) {
	key, secret, err := h.authService.CreateKey(r.Context(), params)
	if err != nil {
		if errors.Is(err, organization.ErrOrganizationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Organization not found", requestID)
			return
		}
		slog.Error("failed to create api key", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", requestID)
		return
	}

	response.Success(w, http.StatusCreated, keyWithSecretResponse{
		keyResponse: toKeyResponse(key),
		Key:         secret,
	}, requestID)
}

// List handles GET /v1/keys for the caller's organization. Secrets are never
// returned, only display prefixes.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	keys, err := h.keyRepo.ListByOrganization(r.Context(), *identity.OrganizationID)
	if err != nil {
		slog.Error("failed to list api keys", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", requestID)
		return
	}

	items := make([]keyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, toKeyResponse(&keys[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// Revoke handles DELETE /v1/keys/{id} (soft revoke, idempotent). The lookup
// is bound to the caller's organization, so another tenant's key id behaves
// like an unknown id.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	if err := h.keyRepo.Revoke(r.Context(), id, identity.OrganizationID); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Key not found", requestID)
			return
		}
		slog.Error("failed to revoke api key", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke key", requestID)
		return
	}

	response.NoContent(w)
}

func (h *APIKeyHandler) decodeCreate(w http.ResponseWriter, r *http.Request, requestID string) (createKeyRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return createKeyRequest{}, false
	}

	fieldErrors := validation.ValidateCreateKeyRequest(validation.CreateKeyRequest{
		Name: req.Name, Scopes: req.Scopes, ExpiresAt: req.ExpiresAt,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return createKeyRequest{}, false
	}

	return req, true
}

func parseExpiry(value string) *time.Time {
	if value == "" {
		return nil
	}
	// Already validated as RFC 3339.
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

func toKeyResponse(k *auth.APIKey) keyResponse {
	resp := keyResponse{
		ID:             k.ID.String(),
		Name:           k.Name,
		Prefix:         k.KeyPrefix,
		Type:           string(k.Type),
		OrganizationID: k.OrganizationID,
		Scopes:         k.Scopes,
		CreatedAt:      k.CreatedAt.UTC().Format(time.RFC3339),
	}
	if k.LastUsedAt != nil {
		v := k.LastUsedAt.UTC().Format(time.RFC3339)
		resp.LastUsedAt = &v
	}
	if k.ExpiresAt != nil {
		v := k.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &v
	}
	if k.RevokedAt != nil {
		v := k.RevokedAt.UTC().Format(time.RFC3339)
		resp.RevokedAt = &v
	}
	return resp
}
