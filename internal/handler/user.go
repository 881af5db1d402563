package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tasktracker/internal/service"
)

// UserHandler serves the signed-in user's own profile under /users.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleMe answers GET /users/.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	user, err := h.users.Me(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// HandleChangePassword answers PUT /users/password.
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var in service.ChangePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), claims.UserID, in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePhoneNumber answers PUT /users/phonenumber/{phone}.
func (h *UserHandler) HandleChangePhoneNumber(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.users.ChangePhoneNumber(r.Context(), claims.UserID, chi.URLParam(r, "phone")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeAddress answers PUT /users/address?address=...
func (h *UserHandler) HandleChangeAddress(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.users.ChangeAddress(r.Context(), claims.UserID, r.URL.Query().Get("address")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
