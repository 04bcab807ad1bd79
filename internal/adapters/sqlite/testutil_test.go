// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB() and
// the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/rollout/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// One connection only: each new connection to :memory: is a fresh database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", db.DSN(db.MemoryPath, time.Second))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedCity inserts a test city.
func seedCity(t *testing.T, database *sql.DB, id int64, name, status string) {
	t.Helper()
	_, err := database.Exec(
		"INSERT INTO cities (id, name, status, population, working_age_population) VALUES (?, ?, ?, 1000, 600)",
		id, name, status,
	)
	if err != nil {
		t.Fatalf("failed to seed city: %v", err)
	}
}

// seedTransaction inserts a feed row.
func seedTransaction(t *testing.T, database *sql.DB, id, cityName, typ, desc, amount string, at time.Time) {
	t.Helper()
	_, err := database.Exec(
		"INSERT INTO transactions (id, city, type, description, amount, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		id, cityName, typ, desc, amount, at.UTC(),
	)
	if err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
}
