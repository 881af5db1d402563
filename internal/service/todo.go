// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// in-memory fakes and the handlers never see SQL.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// TodoInput is the body of POST /todos/todo and PUT /todos/todo/{id}.
type TodoInput struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=3,max=100"`
	Priority    int    `json:"priority" validate:"min=1,max=5"`
	Complete    bool   `json:"complete"`
}

// TodoService handles a single user's todos. Every method takes the owner
// ID from the caller's validated token; there is no way to reach another
// user's rows through it.
type TodoService struct {
	repo   repository.TodoRepository
	logger *slog.Logger
}

func NewTodoService(repo repository.TodoRepository, logger *slog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new todo for ownerID.
func (s *TodoService) Create(ctx context.Context, ownerID string, in TodoInput) (*model.Todo, error) {
	in = normalizeTodo(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	todo := &model.Todo{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Complete:    in.Complete,
		OwnerID:     ownerID,
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.Error("failed to create todo",
			slog.String("ownerID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.String("id", todo.ID),
		slog.String("ownerID", ownerID),
	)

	return todo, nil
}

// Get returns apperror.ErrNotFound both for missing IDs and for other
// users' todos.
func (s *TodoService) Get(ctx context.Context, ownerID, id string) (*model.Todo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "todo ID is required")
	}
	return s.repo.GetForOwner(ctx, id, ownerID)
}

// List returns the owner's todos, newest first. limit is clamped to 1..100.
func (s *TodoService) List(ctx context.Context, ownerID string, limit, offset int) ([]model.Todo, error) {
	todos, err := s.repo.ListByOwner(ctx, ownerID, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list todos", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	return todos, nil
}

// Update replaces every mutable field of the todo.
//
// STRATEGY: fetch then update, so a foreign or missing ID surfaces as
// NotFound from the same place Get reports it, and the caller gets the
// full updated record back.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, in TodoInput) (*model.Todo, error) {
	in = normalizeTodo(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	todo, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	todo.Title = in.Title
	todo.Description = in.Description
	todo.Priority = in.Priority
	todo.Complete = in.Complete

	if err := s.repo.UpdateForOwner(ctx, todo); err != nil {
		s.logger.Error("failed to update todo",
			slog.String("id", todo.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating todo: %w", err)
	}

	s.logger.Info("todo updated", slog.String("id", todo.ID))
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, ownerID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "todo ID is required")
	}

	if err := s.repo.DeleteForOwner(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Info("todo deleted", slog.String("id", id), slog.String("ownerID", ownerID))
	return nil
}

func normalizeTodo(in TodoInput) TodoInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}
