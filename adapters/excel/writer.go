package excel

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"dataportal/domain/workbook"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Writer renders output sheets as an xlsx workbook
type Writer struct {
	style Style
}

// NewWriter creates a writer with the given style
func NewWriter(style Style) *Writer {
	return &Writer{style: style}
}

// Money columns use the currency style only for cells written as numbers;
// text cells in those columns are right-aligned without a number format.
type sheetStyles struct {
	header, body, zebra int
	money, zebraMoney   int
	right, zebraRight   int
}

func (w *Writer) border() []excelize.Border {
	var out []excelize.Border
	for _, side := range []string{"left", "top", "right", "bottom"} {
		out = append(out, excelize.Border{Type: side, Color: w.style.BorderColor, Style: 1})
	}
	return out
}

func (w *Writer) newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Border:    w.border(),
		Fill:      excelize.Fill{Type: "pattern", Color: []string{w.style.HeaderFill}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: w.style.HeaderFont},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return s, err
	}
	if s.body, err = f.NewStyle(&excelize.Style{Border: w.border()}); err != nil {
		return s, err
	}
	money := &excelize.Style{
		Border:       w.border(),
		CustomNumFmt: &w.style.CurrencyFormat,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
	}
	if s.money, err = f.NewStyle(money); err != nil {
		return s, err
	}
	right := &excelize.Style{
		Border:    w.border(),
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}
	if s.right, err = f.NewStyle(right); err != nil {
		return s, err
	}
	s.zebra, s.zebraMoney, s.zebraRight = s.body, s.money, s.right
	if w.style.ZebraFill != "" {
		fill := excelize.Fill{Type: "pattern", Color: []string{w.style.ZebraFill}, Pattern: 1}
		if s.zebra, err = f.NewStyle(&excelize.Style{Border: w.border(), Fill: fill}); err != nil {
			return s, err
		}
		zm := *money
		zm.Fill = fill
		if s.zebraMoney, err = f.NewStyle(&zm); err != nil {
			return s, err
		}
		zr := *right
		zr.Fill = fill
		if s.zebraRight, err = f.NewStyle(&zr); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Write renders the sheets in order into w. At least one sheet is required.
func (w *Writer) Write(ctx context.Context, out io.Writer, sheets []workbook.OutputSheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}
	f := excelize.NewFile()
	defer f.Close()

	styles, err := w.newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Title); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sheet.Title, err)
			}
		} else if _, err := f.NewSheet(sheet.Title); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sheet.Title, err)
		}
		if err := w.writeSheet(f, sheet, styles); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sheet.Title, err)
		}
	}
	if err := writePartitionIndex(f, sheets); err != nil {
		return fmt.Errorf("failed to write partition index: %w", err)
	}
	f.SetActiveSheet(0)

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writePartitionIndex adds a hidden sheet pairing each title with its
// partition tag, but only when some title differs from its tag.
func writePartitionIndex(f *excelize.File, sheets []workbook.OutputSheet) error {
	needed := false
	for _, s := range sheets {
		if s.Partition != "" && s.Partition != s.Title {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	name := workbook.PartitionIndexSheet
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	rows := [][]string{{"SHEET", "PARTITION"}}
	for _, s := range sheets {
		if s.Partition != "" {
			rows = append(rows, []string{s.Title, s.Partition})
		}
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+1)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return f.SetSheetVisible(name, false)
}

func (w *Writer) writeSheet(f *excelize.File, sheet workbook.OutputSheet, styles sheetStyles) error {
	name := sheet.Title
	widths := make([]int, len(sheet.Header))

	for c, h := range sheet.Header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(name, cell, h); err != nil {
			return err
		}
		widths[c] = utf8.RuneCountInString(h)
	}
	if len(sheet.Header) == 0 {
		return nil
	}
	lastCol, _ := excelize.ColumnNumberToName(len(sheet.Header))
	if err := f.SetCellStyle(name, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}

	for r, row := range sheet.Rows {
		rowNum := r + 2
		striped := r%2 == 1
		for c := range sheet.Header {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			var v string
			if c < len(row) {
				v = row[c]
			}
			hint := sheet.Hint(c)
			numeric, err := writeCell(f, name, cell, v, hint)
			if err != nil {
				return err
			}
			style := styles.body
			switch {
			case numeric && hint.NumberFormat != "":
				style = pick(striped, styles.zebraMoney, styles.money)
			case hint.NumberFormat != "":
				style = pick(striped, styles.zebraRight, styles.right)
			case striped:
				style = styles.zebra
			}
			if err := f.SetCellStyle(name, cell, cell, style); err != nil {
				return err
			}
			if n := utf8.RuneCountInString(v); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for c, width := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		wdt := float64(width) + 2
		if w.style.MaxColWidth > 0 && wdt > w.style.MaxColWidth {
			wdt = w.style.MaxColWidth
		}
		if err := f.SetColWidth(name, col, col, wdt); err != nil {
			return err
		}
	}
	return f.AutoFilter(name, "A1:"+lastCol+"1", nil)
}

func pick(striped bool, zebra, plain int) int {
	if striped {
		return zebra
	}
	return plain
}

// writeCell stores v as text, or as a number when the hint asks for it and
// v parses. It reports whether a number was written.
func writeCell(f *excelize.File, sheet, cell, v string, hint workbook.ColumnHint) (bool, error) {
	if hint.Numeric && v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return true, f.SetCellValue(sheet, cell, d.InexactFloat64())
		}
	}
	return false, f.SetCellStr(sheet, cell, v)
}
