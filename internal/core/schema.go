package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	createRecordsTableSQL = `CREATE TABLE IF NOT EXISTS operation_records (
	id        SERIAL PRIMARY KEY,
	"time"    TIMESTAMP NOT NULL,
	panelid   BIGINT NOT NULL,
	lotid     BIGINT NOT NULL,
	carrierid BIGINT NOT NULL
)`

	createRecordsTimeIndexSQL = `CREATE INDEX IF NOT EXISTS operation_records_time_idx ON operation_records ("time")`

	createLogsTableSQL = `CREATE TABLE IF NOT EXISTS system_logs (
	id                SERIAL PRIMARY KEY,
	operationtime     TIMESTAMP NOT NULL,
	username          TEXT NOT NULL DEFAULT '',
	machinename       TEXT NOT NULL DEFAULT '',
	operationtype     TEXT NOT NULL DEFAULT '',
	affecteddata      TEXT NOT NULL DEFAULT '',
	detaildescription TEXT NOT NULL DEFAULT ''
)`

	identifierTypeSQL = `SELECT data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = 'operation_records' AND column_name = 'panelid'`

	migrateIdentifiersSQL = `ALTER TABLE operation_records
	ALTER COLUMN panelid TYPE BIGINT USING panelid::bigint,
	ALTER COLUMN lotid TYPE BIGINT USING lotid::bigint,
	ALTER COLUMN carrierid TYPE BIGINT USING carrierid::bigint`
)

// pgDuplicateDatabase is SQLSTATE duplicate_database.
const pgDuplicateDatabase = "42P04"

// EnsureDatabaseExists connects to adminDB with the credentials in
// databaseURL and creates the target database if it is missing.
// Safe to call on every startup.
func EnsureDatabaseExists(ctx context.Context, databaseURL, adminDB string) error {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("%w: parse database url: %v", ErrConnection, err)
	}
	target := cfg.Database
	if target == "" {
		return invalidArgf("database url does not name a database")
	}

	adminCfg := cfg.Copy()
	adminCfg.Database = adminDB

	conn, err := pgx.ConnectConfig(ctx, adminCfg)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %v", ErrConnection, adminDB, err)
	}
	defer conn.Close(ctx)

	return ensureDatabase(ctx, conn, target)
}

func ensureDatabase(ctx context.Context, db DBTX, name string) error {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: check database %s: %v", ErrConnection, name, err)
	}
	if exists {
		return nil
	}

	if _, err := db.Exec(ctx, "CREATE DATABASE "+quoteIdentifier(name)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return nil
		}
		return fmt.Errorf("%w: create database %s: %v", ErrConnection, name, err)
	}

	slog.Info("database created", "database", name)
	return nil
}

// MigrationResult reports the legacy identifier-column migration. It is
// informational: a failed migration never stops startup.
type MigrationResult struct {
	Checked  bool  // column types were inspected
	Migrated bool  // text columns were converted to BIGINT
	Err      error // inspection or conversion failure
}

// Schema creates and migrates the paneltrack tables.
type Schema struct {
	db DBTX
}

// NewSchema returns a Schema operating on db.
func NewSchema(db DBTX) *Schema {
	return &Schema{db: db}
}

// Initialize creates both tables and the time index if absent, then tries
// to convert legacy text identifier columns to BIGINT. Only table creation
// failures are returned as errors; the migration outcome is reported in the
// MigrationResult and logged.
func (s *Schema) Initialize(ctx context.Context) (MigrationResult, error) {
	for _, stmt := range []string{createRecordsTableSQL, createRecordsTimeIndexSQL, createLogsTableSQL} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return MigrationResult{}, fmt.Errorf("%w: create schema: %v", ErrConnection, err)
		}
	}

	res := s.migrateIdentifiers(ctx)
	switch {
	case res.Err != nil:
		slog.Warn("identifier column migration failed; columns left unchanged", "error", res.Err)
	case res.Migrated:
		slog.Info("identifier columns migrated to BIGINT")
	}
	return res, nil
}

func (s *Schema) migrateIdentifiers(ctx context.Context) MigrationResult {
	var dataType string
	if err := s.db.QueryRow(ctx, identifierTypeSQL).Scan(&dataType); err != nil {
		return MigrationResult{Err: fmt.Errorf("inspect column types: %w", err)}
	}

	res := MigrationResult{Checked: true}
	switch dataType {
	case "text", "character varying", "character":
	default:
		return res
	}

	if _, err := s.db.Exec(ctx, migrateIdentifiersSQL); err != nil {
		res.Err = fmt.Errorf("convert identifier columns: %w", err)
		return res
	}
	res.Migrated = true
	return res
}
