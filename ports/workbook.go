package ports

import (
	"context"
	"io"

	"dataportal/domain/workbook"
)

// WorkbookParser turns an uploaded file into ordered sheets of text cells
type WorkbookParser interface {
	Parse(ctx context.Context, fileName string, r io.Reader) (*workbook.Workbook, error)
	Supports(fileName string) bool
}

// WorkbookWriter renders abstract sheets into a spreadsheet container
type WorkbookWriter interface {
	Write(ctx context.Context, w io.Writer, sheets []workbook.OutputSheet) error
}
