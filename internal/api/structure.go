package api

import (
	"net/http"

	"github.com/HerbHall/rackledger/pkg/models"
)

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Categories(r.Context())
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

func (h *Handler) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	m, err := h.provider.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tree, err := m.Tree(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := m.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if !decodeBody(w, r, &c) {
		return
	}
	m, err := h.provider.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := m.Insert(r.Context(), &c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var c models.Category
	if !decodeBody(w, r, &c) {
		return
	}
	c.PublicID = id
	m, err := h.provider.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.Update(r.Context(), &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Categories(r.Context())
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

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Locations(r.Context())
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

func (h *Handler) handleLocationTree(w http.ResponseWriter, r *http.Request) {
	m, err := h.provider.Locations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tree, err := m.Tree(r.Context(), requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Locations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	loc, err := m.Get(r.Context(), id, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if !decodeBody(w, r, &loc) {
		return
	}
	m, err := h.provider.Locations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := m.Insert(r.Context(), &loc, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var loc models.Location
	if !decodeBody(w, r, &loc) {
		return
	}
	loc.PublicID = id
	m, err := h.provider.Locations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := m.Update(r.Context(), &loc, requester(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Locations(r.Context())
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

func (h *Handler) handleListLinks(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Links(r.Context())
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

func (h *Handler) handleGetLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Links(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := m.Get(r.Context(), id, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var l models.Link
	if !decodeBody(w, r, &l) {
		return
	}
	m, err := h.provider.Links(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := m.Insert(r.Context(), &l, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Links(r.Context())
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

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Logs(r.Context())
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

func (h *Handler) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Logs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := m.Get(r.Context(), id, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Logs(r.Context())
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
