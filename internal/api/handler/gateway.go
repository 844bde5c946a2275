package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/gateway"
	"github.com/orbitcrm/orbit/internal/metrics"
	"github.com/orbitcrm/orbit/internal/scope"
)

// GatewayHandler is the generic resource endpoint for API-key clients: one
// URL, the resource named by a query parameter, the verb carrying CRUD intent.
type GatewayHandler struct {
	service *gateway.Service
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(service *gateway.Service) *GatewayHandler {
	return &GatewayHandler{service: service}
}

// ServeHTTP dispatches by verb.
func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	sc, ok := scope.FromContext(r.Context())
	if !ok {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A bearer credential is required", requestID)
		return
	}

	resourceName := r.URL.Query().Get("resource")
	if resourceName == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "resource query parameter is required", requestID)
		return
	}

	h.observe(r, resourceName, sc)

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.list(w, r, sc, resourceName, requestID)
	case http.MethodPost:
		h.create(w, r, sc, resourceName, requestID)
	case http.MethodPatch, http.MethodPut:
		h.update(w, r, sc, resourceName, requestID)
	case http.MethodDelete:
		h.delete(w, r, sc, resourceName, requestID)
	default:
		response.Err(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Unsupported method", requestID)
	}
}

func (h *GatewayHandler) observe(r *http.Request, resourceName string, sc scope.Scope) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		return
	}
	metrics.ObserveGatewayOperation(resourceName, r.Method, string(identity.Family))
	if sc.IsMaster {
		// Master traffic bypasses the tenant filter; keep a trace of it.
		slog.Info("master credential gateway operation",
			"resource", resourceName, "verb", r.Method, "keyId", identity.KeyID)
	}
}

func (h *GatewayHandler) list(w http.ResponseWriter, r *http.Request, sc scope.Scope, resourceName, requestID string) {
	filters := make(map[string]string)
	for param, values := range r.URL.Query() {
		if param == "resource" || len(values) == 0 {
			continue
		}
		filters[param] = values[0]
	}

	rows, err := h.service.List(r.Context(), sc, resourceName, filters)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	response.Success(w, http.StatusOK, rows, requestID)
}

func (h *GatewayHandler) create(w http.ResponseWriter, r *http.Request, sc scope.Scope, resourceName, requestID string) {
	body, ok := h.decodeBody(w, r, requestID)
	if !ok {
		return
	}

	row, err := h.service.Create(r.Context(), sc, resourceName, body)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, row, requestID)
}

func (h *GatewayHandler) update(w http.ResponseWriter, r *http.Request, sc scope.Scope, resourceName, requestID string) {
	id := r.URL.Query().Get("id")
	if id == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "id query parameter is required", requestID)
		return
	}

	body, ok := h.decodeBody(w, r, requestID)
	if !ok {
		return
	}

	row, err := h.service.Update(r.Context(), sc, resourceName, id, body)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, row, requestID)
}

func (h *GatewayHandler) delete(w http.ResponseWriter, r *http.Request, sc scope.Scope, resourceName, requestID string) {
	id := r.URL.Query().Get("id")
	if id == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "id query parameter is required", requestID)
		return
	}

	if err := h.service.Delete(r.Context(), sc, resourceName, id); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	response.NoContent(w)
}

func (h *GatewayHandler) decodeBody(w http.ResponseWriter, r *http.Request, requestID string) (gateway.Row, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var body gateway.Row
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object", requestID)
		return nil, false
	}
	return body, true
}

func (h *GatewayHandler) writeError(w http.ResponseWriter, err error, requestID string) {
	var colErr *gateway.InvalidColumnError
	switch {
	case errors.Is(err, gateway.ErrUnknownResource):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown resource", requestID)
	case errors.Is(err, gateway.ErrReadOnlyResource):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Resource is read-only", requestID)
	case errors.Is(err, gateway.ErrMissingOrganization):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "organization_id is required", requestID)
	case errors.As(err, &colErr):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", colErr.Error(), requestID)
	case errors.Is(err, gateway.ErrRowNotFound):
		// A row outside the caller's tenant and a row that does not exist are
		// the same answer.
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Not found", requestID)
	default:
		slog.Error("gateway storage error", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), requestID)
	}
}
