package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

var _ repository.TodoRepository = (*TodoStore)(nil)

// TodoStore is the todos table.
//
// OWNERSHIP:
// Every per-user query carries "AND owner_id = ?". A todo that exists but
// belongs to someone else is indistinguishable from one that does not exist,
// so callers cannot discover other users' IDs.
type TodoStore struct {
	conn *sql.DB
}

const todoColumns = `id, title, description, priority, complete, owner_id, created_at, updated_at`

// Create inserts a new todo, filling in ID and timestamps.
func (s *TodoStore) Create(ctx context.Context, todo *model.Todo) error {
	now := time.Now().UTC()
	todo.ID = xid.New().String()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO todos (`+todoColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID,
		todo.Title,
		todo.Description,
		todo.Priority,
		todo.Complete,
		todo.OwnerID,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	return nil
}

func (s *TodoStore) GetForOwner(ctx context.Context, id, ownerID string) (*model.Todo, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)

	t, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlite: getting todo %s: %w", id, err)
	}

	return t, nil
}

// ListByOwner returns the owner's todos, newest first.
func (s *TodoStore) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Todo, error) {
	limit, offset := clampList(opts.Limit, opts.Offset)
	return s.list(ctx,
		`SELECT `+todoColumns+` FROM todos
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, ownerID, limit, offset,
	)
}

// List returns every user's todos, newest first. Admin only.
func (s *TodoStore) List(ctx context.Context, opts repository.ListOptions) ([]model.Todo, error) {
	limit, offset := clampList(opts.Limit, opts.Offset)
	return s.list(ctx,
		`SELECT `+todoColumns+` FROM todos
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, limit, offset,
	)
}

func (s *TodoStore) list(ctx context.Context, query string, capHint int, args ...any) ([]model.Todo, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos: %w", err)
	}
	defer rows.Close()

	todos := make([]model.Todo, 0, capHint)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo row: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todos: %w", err)
	}

	return todos, nil
}

// UpdateForOwner overwrites the mutable fields of todo. id, owner_id and
// created_at never change.
func (s *TodoStore) UpdateForOwner(ctx context.Context, todo *model.Todo) error {
	todo.UpdatedAt = time.Now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE todos
		 SET title = ?, description = ?, priority = ?, complete = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		todo.Title,
		todo.Description,
		todo.Priority,
		todo.Complete,
		todo.UpdatedAt,
		todo.ID,
		todo.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %s: %w", todo.ID, err)
	}

	return expectOneRow(result, todo.ID)
}

func (s *TodoStore) DeleteForOwner(ctx context.Context, id, ownerID string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND owner_id = ?`, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

// Delete removes any user's todo. Admin only.
func (s *TodoStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

// Stats counts users and todos in one round trip.
func (s *TodoStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.conn.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			COUNT(*),
			COALESCE(SUM(CASE WHEN complete THEN 1 ELSE 0 END), 0)
		 FROM todos`,
	).Scan(&st.TotalUsers, &st.TotalTodos, &st.CompletedTodos)
	if err != nil {
		return nil, fmt.Errorf("sqlite: computing stats: %w", err)
	}
	st.PendingTodos = st.TotalTodos - st.CompletedTodos

	return &st, nil
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("todo", id)
	}
	return nil
}

func scanTodo(r rowScanner) (*model.Todo, error) {
	var t model.Todo
	err := r.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Complete,
		&t.OwnerID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
