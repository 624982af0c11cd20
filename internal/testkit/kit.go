// Package testkit provides fixtures shared by package tests: an in-memory
// SQLite table store and workbook builders.
package testkit

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"dataportal/adapters/sqlstore"
	"dataportal/internal/config"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var dbSeq atomic.Int64

// OpenStore returns a table store on a private in-memory SQLite database
// that is closed when the test ends.
func OpenStore(t testing.TB, opts ...sqlstore.Option) *sqlstore.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	store, err := sqlstore.Connect("sqlite", dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Config returns an application configuration on a private in-memory
// SQLite database with documents stored under a temporary directory.
func Config(t testing.TB) *config.Config {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			URL:    fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)),
		},
		Server: config.ServerConfig{Port: "0", GinMode: "test"},
		Ingest: config.IngestConfig{
			BatchSize:         100,
			MaxPositionalCols: 7,
			Lookahead:         1000,
			EmptyHeaderPolicy: "fallback",
			SofficeBin:        "libreoffice",
			MaxUploadBytes:    1 << 20,
		},
		Storage: config.StorageConfig{Driver: "local", Path: t.TempDir()},
		Documents: config.DocumentsConfig{
			InternalMaxBytes: 1 << 20,
			ExternalMaxBytes: 2 << 20,
		},
		Logging: config.LoggingConfig{Level: "ERROR", Format: "console"},
	}
}

// SheetSpec describes one worksheet of a generated workbook
type SheetSpec struct {
	Name string
	Rows [][]interface{}
}

// Sheet is shorthand for a SheetSpec
func Sheet(name string, rows ...[]interface{}) SheetSpec {
	return SheetSpec{Name: name, Rows: rows}
}

// Row is shorthand for a row of cell values
func Row(cells ...interface{}) []interface{} {
	return cells
}

// BuildXLSX renders the sheets into xlsx bytes. Nil cells are left blank.
func BuildXLSX(t testing.TB, sheets ...SheetSpec) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sh.Name))
		} else {
			_, err := f.NewSheet(sh.Name)
			require.NoError(t, err)
		}
		for r, row := range sh.Rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(sh.Name, cell, v))
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// ReadXLSX opens generated bytes for assertions
func ReadXLSX(t testing.TB, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}
