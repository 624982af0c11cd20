package table

// Mode selects how a sheet's header row becomes column identifiers
type Mode string

const (
	// ModeLabeled reads column names from the header row
	ModeLabeled Mode = "labeled"
	// ModePositional generates col_1..col_n from the populated width
	ModePositional Mode = "positional"
)

// EmptyHeaderPolicy decides what happens to blank labeled header cells
type EmptyHeaderPolicy string

const (
	EmptyHeaderFallback EmptyHeaderPolicy = "fallback"
	EmptyHeaderDrop     EmptyHeaderPolicy = "drop"
)

// Warning kinds recorded in an ImportReport
const (
	WarnEmptySheet     = "empty_sheet"
	WarnZeroColumns    = "zero_columns"
	WarnSkippedRows    = "skipped_rows"
	WarnSchemaConflict = "schema_conflict"
	WarnSheetFailed    = "sheet_failed"
)

// Import statuses
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Warning is a non-fatal observation made while importing a file
type Warning struct {
	Sheet   string `json:"sheet"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SheetResult is the outcome of importing one sheet
type SheetResult struct {
	Sheet        string   `json:"sheet"`
	Partition    string   `json:"partition"`
	Title        string   `json:"title,omitempty"`
	Columns      []string `json:"columns,omitempty"`
	RowsImported int      `json:"rows_imported"`
	RowsSkipped  int      `json:"rows_skipped"`
	Skipped      bool     `json:"skipped"`
	Error        string   `json:"error,omitempty"`
}

// ImportReport aggregates the outcome of one ImportFile call
type ImportReport struct {
	RunID        string        `json:"run_id"`
	Table        string        `json:"table"`
	File         string        `json:"file"`
	Mode         Mode          `json:"mode"`
	RowsImported int           `json:"rows_imported"`
	Sheets       []SheetResult `json:"sheets"`
	Warnings     []Warning     `json:"warnings"`
}

// Status summarizes the report: failed when sheets errored and none
// committed, partial when some errored, ok otherwise.
func (r *ImportReport) Status() string {
	failed, committed := 0, 0
	for _, s := range r.Sheets {
		switch {
		case s.Error != "":
			failed++
		case !s.Skipped:
			committed++
		}
	}
	switch {
	case failed > 0 && committed == 0:
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusOK
	}
}

// Warn appends a warning to the report
func (r *ImportReport) Warn(sheet, kind, message string) {
	r.Warnings = append(r.Warnings, Warning{Sheet: sheet, Kind: kind, Message: message})
}
