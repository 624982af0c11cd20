// Package workbook models spreadsheets on both sides of the core: parsed
// grids coming in and styled sheets going out.
package workbook

// Sheet is one parsed worksheet. Cells hold the formatted text of each
// cell; an empty string is a blank cell. Rows may be ragged.
type Sheet struct {
	Name string
	Grid [][]string
}

// PartitionIndexSheet names the hidden sheet that maps sheet titles back
// to partition tags when a title could not hold its tag verbatim.
const PartitionIndexSheet = "_partitions"

// Workbook is the ordered list of parsed sheets of one upload. Partitions
// maps sheet names to partition tags read from the partition index sheet,
// which is never listed in Sheets.
type Workbook struct {
	FileName   string
	Sheets     []Sheet
	Partitions map[string]string
}

// PartitionOf returns the partition tag recorded for a sheet, or the sheet
// name itself.
func (w *Workbook) PartitionOf(sheet string) string {
	if tag, ok := w.Partitions[sheet]; ok && tag != "" {
		return tag
	}
	return sheet
}

// ColumnHint carries optional presentation hints for one output column.
// A column with a number format is right-aligned.
type ColumnHint struct {
	NumberFormat string // custom number format, e.g. `"Rp "#,##0`
	Numeric      bool   // write parsable values as numbers
}

// OutputSheet is the abstract sheet model handed to a workbook writer.
// Partition is the tag the rows came from; it is empty for untagged rows.
type OutputSheet struct {
	Title     string
	Partition string
	Header    []string
	Rows      [][]string
	Hints     []ColumnHint // indexed like Header; may be shorter
}

// Hint returns the hint for column i, or the zero hint.
func (s OutputSheet) Hint(i int) ColumnHint {
	if i < len(s.Hints) {
		return s.Hints[i]
	}
	return ColumnHint{}
}
