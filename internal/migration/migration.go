package migration

import (
	"context"
	"fmt"

	"dataportal/adapters/sqlstore"
	"dataportal/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB, dialect sqlstore.Dialect) error
	Version() string
}

// MigrationRunner creates the fixed tables of the portal. Upload tables are
// created at import time by the schema manager, not here.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB, dialect sqlstore.Dialect) error {
	if err := r.createDocumentsTable(ctx, db, dialect); err != nil {
		return errors.Wrap(err, "failed to create documents table")
	}

	if err := r.createImportRunsTable(ctx, db, dialect); err != nil {
		return errors.Wrap(err, "failed to create import_runs table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createDocumentsTable(ctx context.Context, db *sqlx.DB, d sqlstore.Dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			id VARCHAR(36) PRIMARY KEY,
			category VARCHAR(16) NOT NULL,
			title VARCHAR(255) NOT NULL,
			original_name TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)
	`, d.TimestampType()))
	return err
}

func (r *MigrationRunner) createImportRunsTable(ctx context.Context, db *sqlx.DB, d sqlstore.Dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS import_runs (
			id VARCHAR(36) PRIMARY KEY,
			table_name VARCHAR(63) NOT NULL,
			file_name TEXT NOT NULL,
			mode VARCHAR(16) NOT NULL,
			rows_imported INTEGER NOT NULL DEFAULT 0,
			sheets INTEGER NOT NULL DEFAULT 0,
			warnings TEXT NOT NULL DEFAULT '[]',
			status VARCHAR(16) NOT NULL,
			started_at %[1]s NOT NULL,
			finished_at %[1]s NOT NULL
		)
	`, d.TimestampType()))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_documents_category_created ON documents(category, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_import_runs_table_started ON import_runs(table_name, started_at)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}
