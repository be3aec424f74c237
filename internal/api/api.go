// Package api provides the HTTP handlers of the RackLedger REST API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/auth"
	"github.com/HerbHall/rackledger/internal/managers"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/internal/server"
)

const prefix = "/api/v1"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the REST API on top of a manager provider.
type Handler struct {
	provider *managers.Provider
	issuer   *auth.Issuer
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(provider *managers.Provider, issuer *auth.Issuer, logger *zap.Logger) *Handler {
	return &Handler{provider: provider, issuer: issuer, logger: logger}
}

// RegisterRoutes registers every API route on the mux. All routes except
// login require a bearer token.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+prefix+path, h.authenticate(fn))
	}

	mux.HandleFunc("POST "+prefix+"/auth/login", h.handleLogin)
	handle("GET /auth/me", h.handleMe)

	handle("GET /types", h.handleListTypes)
	handle("POST /types", h.handleCreateType)
	handle("GET /types/{id}", h.handleGetType)
	handle("PUT /types/{id}", h.handleUpdateType)
	handle("DELETE /types/{id}", h.handleDeleteType)

	handle("GET /objects", h.handleListObjects)
	handle("POST /objects", h.handleCreateObject)
	handle("GET /objects/{id}", h.handleGetObject)
	handle("PUT /objects/{id}", h.handleUpdateObject)
	handle("DELETE /objects/{id}", h.handleDeleteObject)
	handle("PATCH /objects/{id}/state", h.handleSetObjectState)
	handle("GET /objects/{id}/references", h.handleObjectReferences)
	handle("GET /objects/{id}/logs", h.handleObjectLogs)
	handle("GET /objects/{id}/links", h.handleObjectLinks)
	handle("GET /objects/{id}/location", h.handleObjectLocation)

	handle("GET /categories", h.handleListCategories)
	handle("GET /categories/tree", h.handleCategoryTree)
	handle("POST /categories", h.handleCreateCategory)
	handle("GET /categories/{id}", h.handleGetCategory)
	handle("PUT /categories/{id}", h.handleUpdateCategory)
	handle("DELETE /categories/{id}", h.handleDeleteCategory)

	handle("GET /locations", h.handleListLocations)
	handle("GET /locations/tree", h.handleLocationTree)
	handle("POST /locations", h.handleCreateLocation)
	handle("GET /locations/{id}", h.handleGetLocation)
	handle("PUT /locations/{id}", h.handleUpdateLocation)
	handle("DELETE /locations/{id}", h.handleDeleteLocation)

	handle("GET /links", h.handleListLinks)
	handle("POST /links", h.handleCreateLink)
	handle("GET /links/{id}", h.handleGetLink)
	handle("DELETE /links/{id}", h.handleDeleteLink)

	handle("GET /logs", h.handleListLogs)
	handle("GET /logs/{id}", h.handleGetLog)
	handle("DELETE /logs/{id}", h.handleDeleteLog)

	handle("GET /users", h.handleListUsers)
	handle("POST /users", h.handleCreateUser)
	handle("GET /users/{id}", h.handleGetUser)
	handle("DELETE /users/{id}", h.handleDeleteUser)
	handle("GET /groups", h.handleListGroups)
	handle("POST /groups", h.handleCreateGroup)
	handle("GET /groups/{id}", h.handleGetGroup)
	handle("DELETE /groups/{id}", h.handleDeleteGroup)

	handle("GET /search", h.handleSearch)
	handle("GET /search/quick", h.handleQuickSearch)

	handle("GET /exporter/objects", h.handleExportObjects)
}

// authenticate rejects requests without a valid bearer token and stores the
// verified claims on the request context.
func (h *Handler) authenticate(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			server.Unauthorized(w, err.Error(), r.URL.Path)
			return
		}
		claims, err := h.issuer.Verify(token)
		if err != nil {
			server.Unauthorized(w, "invalid or expired token", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func requester(r *http.Request) *managers.Requester {
	return auth.RequesterFromContext(r.Context())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type created struct {
	PublicID int `json:"public_id"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		server.BadRequest(w, "invalid request body: "+err.Error(), r.URL.Path)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		server.BadRequest(w, fmt.Sprintf("invalid id %q", raw), r.URL.Path)
		return 0, false
	}
	return id, true
}

func parseParams(w http.ResponseWriter, r *http.Request) (query.Parameters, bool) {
	params, err := query.ParseParameters(r.URL.Query())
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return params, false
	}
	return params, true
}

// writeList writes an iteration result in the collection response shape.
func writeList[T any](w http.ResponseWriter, res *query.IterationResult[T], params query.Parameters) {
	writeJSON(w, http.StatusOK, query.NewResponse(res, params))
}

// writeError maps manager and query errors onto problem responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		denied *managers.AccessDeniedError
		getErr *managers.GetError
		iter   *managers.IterationError
		ins    *managers.InsertError
		upd    *managers.UpdateError
		del    *managers.DeleteError
	)
	path := r.URL.Path
	switch {
	case errors.As(err, &denied), errors.Is(err, acl.ErrAccessDenied):
		server.Forbidden(w, err.Error(), path)
	case errors.Is(err, managers.ErrInvalidCredentials), errors.Is(err, managers.ErrNoTenant):
		server.Unauthorized(w, err.Error(), path)
	case errors.As(err, &getErr) && errors.Is(err, managers.ErrNotFound):
		server.NotFound(w, err.Error(), path)
	case errors.Is(err, query.ErrInvalidParameters), errors.Is(err, query.ErrInvalidSortOrder),
		errors.Is(err, managers.ErrValidation),
		errors.As(err, &iter), errors.As(err, &ins), errors.As(err, &upd), errors.As(err, &del):
		server.BadRequest(w, err.Error(), path)
	default:
		h.logger.Error("request failed",
			zap.String("request_id", server.RequestIDFromContext(r.Context())),
			zap.String("path", path),
			zap.Error(err))
		server.InternalError(w, "internal server error", path)
	}
}
