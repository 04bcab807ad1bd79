package db

import (
	"context"
	"database/sql"
)

// SchemaSQL is the complete schema for a fresh rollout database. It reflects
// the state after every migration in migrations.go.
//
// This is the single source of truth for the schema. Repository tests load it
// through GetSchemaSQL() instead of declaring their own tables, so a column
// referenced in code but missing here fails with "no such column" at test time.
//
// When adding a column or table:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
//
// Amounts are stored as TEXT holding an exact decimal string. Times are bound
// from Go as UTC time.Time values so string comparison orders them correctly.
const SchemaSQL = `
-- Cities (rollout registry)
CREATE TABLE IF NOT EXISTS cities (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'PLANNING' CHECK (status IN ('PLANNING', 'EXPANSION', 'CONSOLIDATED')),
	population INTEGER NOT NULL DEFAULT 0 CHECK (population >= 0),
	working_age_population INTEGER NOT NULL DEFAULT 0 CHECK (working_age_population >= 0 AND working_age_population <= population),
	implementation_start_date DATETIME,
	region TEXT,
	demonym TEXT,
	mayor TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Plan details (one phase plan per city, phases as a JSON document)
CREATE TABLE IF NOT EXISTS plan_details (
	city_id INTEGER PRIMARY KEY,
	phases TEXT NOT NULL DEFAULT '[]',
	start_date DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (city_id) REFERENCES cities(id)
);

-- Planning results header (one per city)
CREATE TABLE IF NOT EXISTS planning_results (
	city_id INTEGER PRIMARY KEY,
	start_date DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (city_id) REFERENCES cities(id)
);

-- Planning result months (one row per city, month and kind)
CREATE TABLE IF NOT EXISTS planning_result_months (
	city_id INTEGER NOT NULL,
	month TEXT NOT NULL CHECK (length(month) = 7),
	kind TEXT NOT NULL CHECK (kind IN ('projected', 'realized')),
	amount TEXT NOT NULL,
	provenance TEXT NOT NULL CHECK (provenance IN ('plan', 'transactions', 'manual', 'fallback')),
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (city_id, month, kind),
	FOREIGN KEY (city_id) REFERENCES planning_results(city_id)
);

-- Transactions (read-only feed, loaded by the payments pipeline)
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	city TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('CREDIT', 'DEBIT')),
	description TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_city_type_time ON transactions(city, type, timestamp);

-- Audit log
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL,
	field_name TEXT,
	old_value TEXT,
	new_value TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// InitSchema creates the schema on a fresh database and runs pending
// migrations on an existing one.
func InitSchema(ctx context.Context, database *sql.DB) error {
	var tableCount int
	err := database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount == 0 {
		// Fresh install: create the current schema and mark every migration applied.
		if _, err := database.ExecContext(ctx, SchemaSQL); err != nil {
			return err
		}
		for _, m := range migrations {
			if _, err := database.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
				return err
			}
		}
		return nil
	}

	return RunMigrations(ctx, database)
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
