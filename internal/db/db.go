package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options controls how the database is opened.
type Options struct {
	Path           string
	BusyTimeout    time.Duration // how long a writer waits for the lock
	ConnectTimeout time.Duration // bound on the initial ping and schema setup
}

// Open opens the database at opts.Path, creating its directory if needed,
// and brings the schema up to date.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	if opts.Path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		opts.Path = p
	}
	if opts.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", DSN(opts.Path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.Path == MemoryPath {
		// Every connection to :memory: is a separate database.
		database.SetMaxOpenConns(1)
	}

	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := InitSchema(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// DSN builds the go-sqlite3 connection string. Foreign keys are enforced and
// transactions take the write lock up front.
func DSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	if busyTimeout > 0 {
		q.Set("_busy_timeout", fmt.Sprintf("%d", busyTimeout.Milliseconds()))
	}
	return "file:" + path + "?" + q.Encode()
}

// DefaultPath returns ~/.rollout/rollout.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rollout", "rollout.db"), nil
}
