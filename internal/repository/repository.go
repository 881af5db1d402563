// Package repository defines the storage contracts the services depend on.
// The sqlite subpackage is the only implementation.
package repository

import (
	"context"

	"github.com/sakif/tasktracker/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores accounts.
//
// Create returns an apperror.ErrConflict error when the username or email is
// already taken. The error deliberately does not say which.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdatePhoneNumber(ctx context.Context, id, phone string) error
	UpdateAddress(ctx context.Context, id, address string) error
}

// TodoRepository stores todos. The *ForOwner methods only ever touch rows
// whose owner_id matches, and report other users' rows as not found.
type TodoRepository interface {
	Create(ctx context.Context, todo *model.Todo) error
	GetForOwner(ctx context.Context, id, ownerID string) (*model.Todo, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]model.Todo, error)
	UpdateForOwner(ctx context.Context, todo *model.Todo) error
	DeleteForOwner(ctx context.Context, id, ownerID string) error

	List(ctx context.Context, opts ListOptions) ([]model.Todo, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.Stats, error)
}
