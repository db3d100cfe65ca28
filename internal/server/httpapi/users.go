package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/server/gate"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/services"
)

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	user, token, err := h.users.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			respondJSON(w, http.StatusBadRequest, map[string]string{"message": "Email is already in use"})
			return
		}
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	gate.SetCookie(w, token, h.cookieMaxAge)
	respondJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	user, token, err := h.users.Login(r.Context(), in)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"errors": "Invalid credentials"})
			return
		}
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	gate.SetCookie(w, token, h.cookieMaxAge)
	respondJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	claims, _ := gate.ClaimsFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"user": claims})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := gate.ClaimsFromContext(r.Context())
	if err := h.users.Logout(r.Context(), gate.TokenFromContext(r.Context()), claims); err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	gate.ClearCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) allUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := gate.ClaimsFromContext(r.Context())
	users, err := h.users.Directory(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}
