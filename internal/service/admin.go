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

// AdminService is the cross-user view. The router only mounts it behind
// RequireRole("admin"); it performs no role checks itself.
type AdminService struct {
	todos  repository.TodoRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAdminService(todos repository.TodoRepository, users repository.UserRepository, logger *slog.Logger) *AdminService {
	return &AdminService{todos: todos, users: users, logger: logger}
}

func (s *AdminService) ListTodos(ctx context.Context, limit, offset int) ([]model.Todo, error) {
	todos, err := s.todos.List(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/admin: listing todos: %w", err)
	}
	return todos, nil
}

func (s *AdminService) DeleteTodo(ctx context.Context, adminID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "todo ID is required")
	}
	if err := s.todos.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("todo deleted by admin", slog.String("id", id), slog.String("adminID", adminID))
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	users, err := s.users.List(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/admin: listing users: %w", err)
	}
	return users, nil
}

func (s *AdminService) Stats(ctx context.Context) (*model.Stats, error) {
	st, err := s.todos.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/admin: stats: %w", err)
	}
	return st, nil
}
