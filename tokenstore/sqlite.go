package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Backend = (*SQLiteBackend)(nil)

// SQLiteBackend keeps tokens in a single table of a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at dsn and initialises the
// schema. Use ":memory:" for an in-memory database.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenstore/sqlite: open: %w", err)
	}
	// A pool of :memory: connections would each see a different database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tentacles_tokens (
			service    TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("tokenstore/sqlite: create table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, service string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tentacles_tokens WHERE service = ?`, service,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore/sqlite: get: %w", err)
	}
	return data, nil
}

func (s *SQLiteBackend) Put(ctx context.Context, service string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tentacles_tokens (service, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		service, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("tokenstore/sqlite: put: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, service string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tentacles_tokens WHERE service = ?`, service); err != nil {
		return fmt.Errorf("tokenstore/sqlite: delete: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
