package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tasktracker/internal/service"
)

// TodoHandler manages CRUD operations for the caller's todos.
//
// The owner always comes from the token claims. A todo ID belonging to
// someone else looks exactly like a missing one (404).
type TodoHandler struct {
	todos  *service.TodoService
	logger *slog.Logger
}

func NewTodoHandler(todos *service.TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, logger: logger}
}

// HandleList answers GET /todos/?limit=&offset=
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	todos, err := h.todos.List(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, todos)
}

// HandleGet answers GET /todos/todo/{id}.
func (h *TodoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	todo, err := h.todos.Get(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, todo)
}

// HandleCreate answers POST /todos/todo.
// REQUEST BODY: {"title": "...", "description": "...", "priority": 1-5, "complete": false}
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var in service.TodoInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	todo, err := h.todos.Create(r.Context(), claims.UserID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, todo)
}

// HandleUpdate answers PUT /todos/todo/{id} with 204.
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var in service.TodoInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.todos.Update(r.Context(), claims.UserID, chi.URLParam(r, "id"), in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete answers DELETE /todos/todo/{id} with 204.
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.todos.Delete(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
