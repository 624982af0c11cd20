// Package header turns raw spreadsheet header cells into canonical column identifiers.
package header

import (
	"strconv"
	"strings"

	"dataportal/domain/table"
)

// MaxIdentifierLength is the longest identifier PostgreSQL keeps without truncation
const MaxIdentifierLength = 63

// Normalize trims and lower-cases a header cell and replaces every
// character outside [a-z0-9] with an underscore.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > MaxIdentifierLength {
		out = out[:MaxIdentifierLength]
	}
	return out
}

// avoidSystem renames identifiers that would shadow a store-managed column.
func avoidSystem(name string) string {
	if table.IsSystemColumn(name) {
		return name + "_"
	}
	return name
}

// Labeled builds the header of a sheet whose first row carries column
// names. Blank cells become column_<position> or are dropped according to
// policy; later duplicates are discarded. Each column remembers the cell
// index it was read from.
func Labeled(cells []string, policy table.EmptyHeaderPolicy) table.Header {
	seen := make(map[string]bool, len(cells))
	h := make(table.Header, 0, len(cells))
	for i, cell := range cells {
		name := Normalize(cell)
		if name == "" {
			if policy == table.EmptyHeaderDrop {
				continue
			}
			name = "column_" + strconv.Itoa(i+1)
		}
		name = avoidSystem(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		h = append(h, table.Column{Name: name, Source: i})
	}
	return h
}

// Positional builds col_1..col_width.
func Positional(width int) table.Header {
	if width <= 0 {
		return table.Header{}
	}
	h := make(table.Header, width)
	for i := range h {
		h[i] = table.Column{Name: "col_" + strconv.Itoa(i+1), Source: i}
	}
	return h
}

// Union appends to base the names of extra not already present, keeping order.
func Union(base []string, extra ...[]string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base))
	for _, n := range base {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, list := range extra {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
