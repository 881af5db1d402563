// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code and works everywhere Go works.
//
// The schema lives in migrations/*.sql, embedded into the binary and applied
// by golang-migrate on every start. Already-applied versions are skipped.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/tasktracker/internal/apperror"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB owns the connection pool and hands out the per-table stores.
type DB struct {
	conn  *sql.DB
	users *UserStore
	todos *TodoStore
}

// New opens the database at dbPath and applies pending migrations.
//
// dbPath examples:
//   - "data/tasktracker.db"  → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	// "sqlite" is the driver name registered by modernc.org/sqlite's init().
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite serialises writers anyway. A single connection also keeps a
	// ":memory:" database alive and shared for the life of the pool.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. todos.owner_id relies on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if err := migrateUp(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return &DB{
		conn:  conn,
		users: &UserStore{conn: conn},
		todos: &TodoStore{conn: conn},
	}, nil
}

// Users returns the user store.
func (db *DB) Users() *UserStore { return db.users }

// Todos returns the todo store.
func (db *DB) Todos() *TodoStore { return db.todos }

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func migrateUp(conn *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	// No m.Close() here: it would close conn along with the driver.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// conflictOr maps a unique violation to apperror.Conflict(resource) and
// wraps anything else with msg.
func conflictOr(err error, resource, msg string) error {
	if isUniqueViolation(err) {
		return apperror.Conflict(resource)
	}
	return fmt.Errorf("sqlite: %s: %w", msg, err)
}

func clampList(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
