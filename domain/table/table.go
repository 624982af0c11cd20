// Package table provides the types shared by the ingestion, query and export paths
package table

import (
	"sort"
	"time"
)

// System columns present in every managed table
const (
	ColumnID        = "id"
	ColumnPartition = "source_sheet"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// ManualPartition tags rows entered one at a time rather than imported
const ManualPartition = "manual"

var systemColumns = map[string]bool{
	ColumnID:        true,
	ColumnPartition: true,
	ColumnCreatedAt: true,
	ColumnUpdatedAt: true,
}

// IsSystemColumn reports whether name is managed by the store rather than by uploads
func IsSystemColumn(name string) bool {
	return systemColumns[name]
}

// Column is one canonical column derived from a header row. Source is the
// zero-based cell index, within the layout window, that feeds it.
type Column struct {
	Name   string `json:"name"`
	Source int    `json:"source"`
}

// Header is the ordered canonical column set of one sheet
type Header []Column

// Names returns the column identifiers in header order
func (h Header) Names() []string {
	names := make([]string, len(h))
	for i, c := range h {
		names[i] = c.Name
	}
	return names
}

// LogicalTable describes a runtime-created table as the store sees it
type LogicalTable struct {
	Name         string   `json:"name"`
	Columns      []string `json:"columns"`
	HasPartition bool     `json:"has_partition"`
}

// DataColumns returns the columns that hold uploaded values, in table order
func (t LogicalTable) DataColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !IsSystemColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether the table carries the named column
func (t LogicalTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Row is one persisted record. A column absent from Values is NULL.
// Partition is empty when the row has no partition tag.
type Row struct {
	ID        int64             `json:"id"`
	Partition string            `json:"source_sheet,omitempty"`
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Display returns the row's non-empty fields keyed by column, including the
// system fields, for presentation.
func (r Row) Display() map[string]string {
	out := make(map[string]string, len(r.Values)+2)
	for k, v := range r.Values {
		if v != "" {
			out[k] = v
		}
	}
	if r.Partition != "" {
		out[ColumnPartition] = r.Partition
	}
	return out
}

// SortedKeys returns the keys of a value map in lexicographic order
func SortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
