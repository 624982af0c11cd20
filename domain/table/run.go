package table

import "time"

// ImportRun is the persisted summary of one ImportFile call
type ImportRun struct {
	ID           string    `json:"id" db:"id"`
	Table        string    `json:"table" db:"table_name"`
	FileName     string    `json:"file_name" db:"file_name"`
	Mode         string    `json:"mode" db:"mode"`
	RowsImported int       `json:"rows_imported" db:"rows_imported"`
	Sheets       int       `json:"sheets" db:"sheets"`
	Warnings     []Warning `json:"warnings" db:"-"`
	Status       string    `json:"status" db:"status"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
}

// RunFromReport summarizes a finished report
func RunFromReport(r *ImportReport, started, finished time.Time) *ImportRun {
	return &ImportRun{
		ID:           r.RunID,
		Table:        r.Table,
		FileName:     r.File,
		Mode:         string(r.Mode),
		RowsImported: r.RowsImported,
		Sheets:       len(r.Sheets),
		Warnings:     r.Warnings,
		Status:       r.Status(),
		StartedAt:    started,
		FinishedAt:   finished,
	}
}
