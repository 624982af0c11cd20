package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Dialect captures the SQL differences between the supported engines.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name       string
	DriverName string
	BindType   int
	// MaxParams is the bind-variable limit of one statement
	MaxParams int

	idColumn      string
	timestampType string
	tableExists   string
	listTables    string
	listColumns   string
	addColumn     string
	// duplicateColumn recognizes the error raised when an ADD COLUMN races
	duplicateColumn func(error) bool
}

// Postgres targets PostgreSQL through lib/pq.
var Postgres = Dialect{
	Name:          "postgres",
	DriverName:    "postgres",
	BindType:      sqlx.DOLLAR,
	MaxParams:     65535,
	idColumn:      "id BIGSERIAL PRIMARY KEY",
	timestampType: "TIMESTAMPTZ",
	tableExists: `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = ?`,
	listTables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	listColumns: `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position`,
	addColumn: "ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT",
	duplicateColumn: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "42701"
	},
}

// SQLite targets modernc.org/sqlite.
var SQLite = Dialect{
	Name:          "sqlite",
	DriverName:    "sqlite",
	BindType:      sqlx.QUESTION,
	MaxParams:     32766,
	idColumn:      "id INTEGER PRIMARY KEY AUTOINCREMENT",
	timestampType: "DATETIME",
	tableExists:   `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	listTables: `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`,
	listColumns: `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
	addColumn:   "ALTER TABLE %s ADD COLUMN %s TEXT",
	duplicateColumn: func(err error) bool {
		return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
	},
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Quote quotes an identifier. Both engines accept standard double quotes.
func (d Dialect) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

// Rebind converts ? placeholders to the dialect's bind style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.BindType, query)
}

// TimestampType is the column type used for created_at and updated_at.
func (d Dialect) TimestampType() string {
	return d.timestampType
}

// IDColumn is the DDL fragment of the synthetic identifier column.
func (d Dialect) IDColumn() string {
	return d.idColumn
}

// IsDuplicateColumn reports whether err is a duplicate-column failure.
func (d Dialect) IsDuplicateColumn(err error) bool {
	return d.duplicateColumn(err)
}
