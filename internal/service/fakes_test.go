package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces.
// They enforce the same uniqueness and ownership rules as the SQLite store
// so service tests exercise real behaviour, and they can be told to fail.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	createErr error
	// beforeCreate runs inside Create, before the uniqueness check. Tests use
	// it to simulate a concurrent insert.
	beforeCreate func(u *model.User)
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) insertLocked(user *model.User) error {
	for _, u := range f.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return apperror.Conflict("user")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.beforeCreate != nil {
		hook := f.beforeCreate
		f.beforeCreate = nil
		hook(user)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	return f.insertLocked(user)
}

// seed inserts a user directly, bypassing hooks.
func (f *fakeUserRepo) seed(u *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if err := f.insertLocked(u); err != nil {
		panic(err)
	}
	return u
}

func (f *fakeUserRepo) find(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username }, username)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (f *fakeUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := f.GetByUsername(ctx, username)
	return err == nil, nil
}

func (f *fakeUserRepo) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeUserRepo) List(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, opts), nil
}

func (f *fakeUserRepo) update(id string, apply func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	apply(u)
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return f.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (f *fakeUserRepo) UpdatePhoneNumber(_ context.Context, id, phone string) error {
	return f.update(id, func(u *model.User) { u.PhoneNumber = phone })
}

func (f *fakeUserRepo) UpdateAddress(_ context.Context, id, address string) error {
	return f.update(id, func(u *model.User) { u.Address = address })
}

type fakeTodoRepo struct {
	todos  map[string]*model.Todo
	nextID int
	err    error
}

func newFakeTodoRepo() *fakeTodoRepo {
	return &fakeTodoRepo{todos: make(map[string]*model.Todo)}
}

func (f *fakeTodoRepo) Create(_ context.Context, t *model.Todo) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	t.ID = fmt.Sprintf("todo-%02d", f.nextID)
	stored := *t
	f.todos[t.ID] = &stored
	return nil
}

func (f *fakeTodoRepo) GetForOwner(_ context.Context, id, ownerID string) (*model.Todo, error) {
	t, ok := f.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, apperror.NotFound("todo", id)
	}
	c := *t
	return &c, nil
}

func (f *fakeTodoRepo) sorted(keep func(*model.Todo) bool) []model.Todo {
	out := []model.Todo{}
	for _, t := range f.todos {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeTodoRepo) ListByOwner(_ context.Context, ownerID string, opts repository.ListOptions) ([]model.Todo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return page(f.sorted(func(t *model.Todo) bool { return t.OwnerID == ownerID }), opts), nil
}

func (f *fakeTodoRepo) UpdateForOwner(_ context.Context, t *model.Todo) error {
	cur, ok := f.todos[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return apperror.NotFound("todo", t.ID)
	}
	stored := *t
	f.todos[t.ID] = &stored
	return nil
}

func (f *fakeTodoRepo) DeleteForOwner(_ context.Context, id, ownerID string) error {
	cur, ok := f.todos[id]
	if !ok || cur.OwnerID != ownerID {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeTodoRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Todo, error) {
	return page(f.sorted(func(*model.Todo) bool { return true }), opts), nil
}

func (f *fakeTodoRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.todos[id]; !ok {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeTodoRepo) Stats(context.Context) (*model.Stats, error) {
	st := &model.Stats{TotalTodos: len(f.todos)}
	for _, t := range f.todos {
		if t.Complete {
			st.CompletedTodos++
		}
	}
	st.PendingTodos = st.TotalTodos - st.CompletedTodos
	return st, nil
}

func page[T any](items []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
