package api

import (
	"net/http"
	"time"

	"github.com/HerbHall/rackledger/internal/auth"
	"github.com/HerbHall/rackledger/internal/server"
	"github.com/HerbHall/rackledger/pkg/models"
)

type loginRequest struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserName == "" || req.Password == "" {
		server.BadRequest(w, "user_name and password are required", r.URL.Path)
		return
	}
	u, err := h.provider.Users().Authenticate(r.Context(), req.UserName, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, exp, err := h.issuer.Issue(u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: u})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		server.Unauthorized(w, "no claims on request", r.URL.Path)
		return
	}
	u, err := h.provider.Users().Get(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// userRequest is the create-user body. models.User never serializes its
// password, so it is decoded separately.
type userRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	GroupID  int    `json:"group_id"`
	Database string `json:"database"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	res, err := h.provider.Users().Iterate(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.provider.Users().Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	req := userRequest{GroupID: models.UserGroupID}
	if !decodeBody(w, r, &req) {
		return
	}
	u := models.User{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
		GroupID:  req.GroupID,
		Database: req.Database,
	}
	id, err := h.provider.Users().Insert(r.Context(), &u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if claims, ok := auth.FromContext(r.Context()); ok && claims.UserID == id {
		server.BadRequest(w, "cannot delete the requesting user", r.URL.Path)
		return
	}
	if err := h.provider.Users().Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	res, err := h.provider.Groups().Iterate(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := h.provider.Groups().Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var g models.Group
	if !decodeBody(w, r, &g) {
		return
	}
	id, err := h.provider.Groups().Insert(r.Context(), &g)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{PublicID: id})
}

func (h *Handler) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.provider.Groups().Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
