package ingest

import (
	"fmt"

	"dataportal/domain/table"
	"dataportal/domain/workbook"
	"dataportal/internal/header"
	"dataportal/internal/projector"
)

// sheetPlan is the database-free part of importing one sheet: the header
// and projected records, or the reason the sheet is skipped. A blank plan
// has a header but only blank data rows; it still clears its partition.
type sheetPlan struct {
	sheet       string
	partition   string
	title       string
	header      table.Header
	records     []map[string]string
	skippedRows int
	skipKind    string
	skipReason  string
	blank       bool
}

func (p *sheetPlan) skipped() bool {
	return p.skipKind != ""
}

// planSheet derives the header and records of one sheet.
func (c *Coordinator) planSheet(sh workbook.Sheet, partition string, opts Options) *sheetPlan {
	plan := &sheetPlan{sheet: sh.Name, partition: partition}
	grid := sh.Grid
	layout := opts.Layout

	if len(grid) < layout.DataRow {
		plan.skipKind = table.WarnEmptySheet
		plan.skipReason = fmt.Sprintf("sheet has %d rows, data starts at row %d", len(grid), layout.DataRow)
		return plan
	}

	plan.title = layout.Title(grid)
	dataRows := layout.DataRows(grid)

	switch opts.Mode {
	case table.ModePositional:
		first := layout.DataRow
		if layout.HeaderRow > 0 && layout.HeaderRow < first {
			first = layout.HeaderRow
		}
		window := make([][]string, 0, len(grid)-first+1)
		for _, row := range grid[first-1:] {
			window = append(window, layout.Window(row))
		}
		plan.header = header.Positional(projector.DetectWidth(window, c.cfg.Lookahead, c.cfg.MaxPositionalCols))
	default:
		plan.header = header.Labeled(layout.HeaderCells(grid), opts.EmptyHeaders)
	}

	if len(plan.header) == 0 {
		plan.skipKind = table.WarnZeroColumns
		plan.skipReason = "no usable columns"
		return plan
	}

	plan.records, plan.skippedRows = projector.ProjectAll(dataRows, plan.header)
	plan.blank = len(plan.records) == 0
	return plan
}
