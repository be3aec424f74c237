package api

import (
	"net/http"

	"github.com/HerbHall/rackledger/internal/server"
	"github.com/HerbHall/rackledger/pkg/models"
)

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Types(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := m.Iterate(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Types(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := m.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	var t models.Type
	if !decodeBody(w, r, &t) {
		return
	}
	m, err := h.provider.Types(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := m.Insert(r.Context(), &t, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var t models.Type
	if !decodeBody(w, r, &t) {
		return
	}
	t.PublicID = id
	m, err := h.provider.Types(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.Update(r.Context(), &t, requester(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Types(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListObjects(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := m.Iterate(r.Context(), params, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	obj, err := m.Get(r.Context(), id, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (h *Handler) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	obj := models.Object{Active: true}
	if !decodeBody(w, r, &obj) {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := m.Insert(r.Context(), &obj, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleUpdateObject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var obj models.Object
	if !decodeBody(w, r, &obj) {
		return
	}
	obj.PublicID = id
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.Update(r.Context(), &obj, requester(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (h *Handler) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.Delete(r.Context(), id, requester(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stateRequest is the body of PATCH /objects/{id}/state.
type stateRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleSetObjectState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req stateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Active == nil {
		server.BadRequest(w, "active is required", r.URL.Path)
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.SetActive(r.Context(), id, *req.Active, requester(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"public_id": id, "active": *req.Active})
}

func (h *Handler) handleObjectReferences(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := m.References(r.Context(), id, params, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleObjectLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Logs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := m.ByObject(r.Context(), id, params, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleObjectLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	objects, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := objects.Get(r.Context(), id, requester(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	m, err := h.provider.Links(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := m.ByObject(r.Context(), id, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleObjectLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Locations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	loc, err := m.ByObject(r.Context(), id, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
