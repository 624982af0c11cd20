package table

import "strings"

// Layout positions the header, data and title rows inside a sheet grid.
// Rows and columns are 1-based; a zero LastCol means "to the widest row".
type Layout struct {
	Name      string   `json:"name" yaml:"name"`
	HeaderRow int      `json:"header_row" yaml:"header_row"` // 0 when Labels supplies the header
	DataRow   int      `json:"data_row" yaml:"data_row"`
	FirstCol  int      `json:"first_col" yaml:"first_col"`
	LastCol   int      `json:"last_col" yaml:"last_col"`
	TitleRows []int    `json:"title_rows,omitempty" yaml:"title_rows"`
	Labels    []string `json:"labels,omitempty" yaml:"labels"`
}

// DefaultLayout reads the header from row 1 and data from row 2 onwards.
var DefaultLayout = Layout{
	Name:      "default",
	HeaderRow: 1,
	DataRow:   2,
	FirstCol:  1,
}

// BylawsLayout matches the regional bylaw capital-deposit form: a B..J
// window, a two-row title at rows 4 and 5 and records from row 6.
var BylawsLayout = Layout{
	Name:      "bylaws",
	DataRow:   6,
	FirstCol:  2,
	LastCol:   10,
	TitleRows: []int{4, 5},
	Labels: []string{
		"NO",
		"PROVINSI/KAB/KOTA",
		"NO PERDA",
		"TAHUN",
		"MEKANISME SETORAN MODAL",
		"ASET",
		"NILAI ASET",
		"TUNAI",
		"KETERANGAN",
	},
}

var layouts = map[string]Layout{
	DefaultLayout.Name: DefaultLayout,
	BylawsLayout.Name:  BylawsLayout,
}

// LayoutByName resolves a preset; the empty name is the default layout.
func LayoutByName(name string) (Layout, bool) {
	if name == "" {
		return DefaultLayout, true
	}
	l, ok := layouts[strings.ToLower(name)]
	return l, ok
}

// Window cuts one grid row down to the layout's column range.
func (l Layout) Window(row []string) []string {
	first := l.FirstCol
	if first < 1 {
		first = 1
	}
	if len(row) < first {
		return nil
	}
	end := len(row)
	if l.LastCol > 0 && l.LastCol < end {
		end = l.LastCol
	}
	if end < first {
		return nil
	}
	return row[first-1 : end]
}

// HeaderCells returns the windowed header row, or the fixed labels.
func (l Layout) HeaderCells(grid [][]string) []string {
	if len(l.Labels) > 0 {
		return l.Labels
	}
	if l.HeaderRow < 1 || l.HeaderRow > len(grid) {
		return nil
	}
	return l.Window(grid[l.HeaderRow-1])
}

// DataRows returns the windowed rows from DataRow onwards.
func (l Layout) DataRows(grid [][]string) [][]string {
	start := l.DataRow
	if start < 1 {
		start = 1
	}
	if start > len(grid) {
		return nil
	}
	out := make([][]string, 0, len(grid)-start+1)
	for _, row := range grid[start-1:] {
		out = append(out, l.Window(row))
	}
	return out
}

// Title joins the non-empty cells of each title row with " | " and the
// rows with " - ". It is empty when the layout defines no title rows.
func (l Layout) Title(grid [][]string) string {
	if len(l.TitleRows) == 0 {
		return ""
	}
	parts := make([]string, 0, len(l.TitleRows))
	for _, r := range l.TitleRows {
		var cells []string
		if r >= 1 && r <= len(grid) {
			for _, c := range l.Window(grid[r-1]) {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
		}
		parts = append(parts, strings.Join(cells, " | "))
	}
	return strings.Join(parts, " - ")
}
