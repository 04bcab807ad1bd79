package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_rollout_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_transactions_lookup_index",
		Up:      migrationV2,
	},
}

// RunMigrations applies every migration newer than the recorded version,
// each in its own transaction.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err = database.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"version": migration.Version,
			"name":    migration.Name,
		}).Info("running migration")

		tx, err := database.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}
		if err := migration.Up(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// CurrentVersion reports the highest applied migration.
func CurrentVersion(ctx context.Context, database *sql.DB) (int, error) {
	var v int
	err := database.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

func migrationV1(ctx context.Context, tx *sql.Tx) error {
	// SchemaSQL is idempotent; on an existing database it only adds what is missing.
	_, err := tx.ExecContext(ctx, SchemaSQL)
	return err
}

func migrationV2(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_transactions_city_type_time ON transactions(city, type, timestamp)")
	return err
}
