package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"dataportal/domain/table"
	"dataportal/ports"

	"github.com/jmoiron/sqlx"
)

// importRunRepository implements the ImportRunRepository interface
type importRunRepository struct {
	db *sqlx.DB
}

// NewImportRunRepository creates a new import history repository
func NewImportRunRepository(db *sqlx.DB) ports.ImportRunRepository {
	return &importRunRepository{db: db}
}

// importRunRow is the stored shape of an ImportRun; warnings are kept as JSON text
type importRunRow struct {
	table.ImportRun
	WarningsJSON string `db:"warnings"`
}

// Create records one import run
func (r *importRunRepository) Create(ctx context.Context, run *table.ImportRun) error {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []table.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := r.db.Rebind(`INSERT INTO import_runs (
		id, table_name, file_name, mode, rows_imported, sheets, warnings, status, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.Table, run.FileName, run.Mode, run.RowsImported, run.Sheets,
		string(warningsJSON), run.Status, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

// ListByTable returns the latest runs for a table, newest first
func (r *importRunRepository) ListByTable(ctx context.Context, tableName string, limit int) ([]*table.ImportRun, error) {
	query := r.db.Rebind(`SELECT
		id, table_name, file_name, mode, rows_imported, sheets, warnings, status, started_at, finished_at
	FROM import_runs
	WHERE table_name = ?
	ORDER BY started_at DESC
	LIMIT ?`)

	var rows []importRunRow
	if err := r.db.SelectContext(ctx, &rows, query, tableName, limit); err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}

	runs := make([]*table.ImportRun, 0, len(rows))
	for i := range rows {
		run := rows[i].ImportRun
		if rows[i].WarningsJSON != "" {
			if err := json.Unmarshal([]byte(rows[i].WarningsJSON), &run.Warnings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
			}
		}
		runs = append(runs, &run)
	}
	return runs, nil
}
