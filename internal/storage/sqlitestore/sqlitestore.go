// Package sqlitestore is a storage engine backed by a single SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/forge/internal/storage"

	_ "modernc.org/sqlite"
)

const (
	DirMode = 0700

	schema = `CREATE TABLE IF NOT EXISTS entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
)`
)

// Engine stores entries in one table keyed by (namespace, key).
type Engine struct {
	db *sql.DB
}

// Opener opens SQLite files as engines.
type Opener struct{}

// Open opens or creates the database at location and ensures the schema.
func (Opener) Open(ctx context.Context, location string) (storage.Engine, error) {
	return Open(ctx, location)
}

// Open opens or creates the database file at path.
func Open(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitestore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("sqlitestore: failed to create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: failed to open %s: %w", path, err)
	}
	// Single connection avoids "database is locked" under concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: failed to connect to %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: failed to create schema in %s: %w", path, err)
	}

	return &Engine{db: db}, nil
}

func (e *Engine) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := e.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE namespace = ? AND key = ?", namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: failed to read %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (e *Engine) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO entries (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value)
	if err != nil {
		return fmt.Errorf("sqlitestore: failed to write %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, namespace, key string) error {
	_, err := e.db.ExecContext(ctx,
		"DELETE FROM entries WHERE namespace = ? AND key = ?", namespace, key)
	if err != nil {
		return fmt.Errorf("sqlitestore: failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}
