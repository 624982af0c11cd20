package excel

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dataportal/domain/workbook"
	"dataportal/internal/errors"
	"dataportal/internal/logging"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Parser reads xlsx, xlsm, xls and csv uploads into text grids.
type Parser struct {
	sofficeBin string
	rawValues  bool
	logger     *zap.Logger
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithSoffice sets the LibreOffice binary used to convert legacy .xls files
func WithSoffice(bin string) ParserOption {
	return func(p *Parser) { p.sofficeBin = bin }
}

// WithRawValues reads unformatted cell values instead of the displayed text
func WithRawValues(raw bool) ParserOption {
	return func(p *Parser) { p.rawValues = raw }
}

// WithLogger sets the parser logger
func WithLogger(l *zap.Logger) ParserOption {
	return func(p *Parser) { p.logger = l }
}

// NewParser creates a workbook parser
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{sofficeBin: "libreoffice"}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNop(p.logger).Named("excel")
	return p
}

var supported = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true, ".csv": true}

// Supports reports whether the file extension can be parsed
func (p *Parser) Supports(fileName string) bool {
	return supported[strings.ToLower(filepath.Ext(fileName))]
}

// Parse reads every sheet of the upload in workbook order.
func (p *Parser) Parse(ctx context.Context, fileName string, r io.Reader) (*workbook.Workbook, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	start := time.Now()

	wb := &workbook.Workbook{FileName: fileName}
	var err error
	switch ext {
	case ".csv":
		wb.Sheets, err = p.readCSV(fileName, r)
	case ".xlsx", ".xlsm":
		err = p.readExcel(r, wb)
	case ".xls":
		err = p.readLegacy(ctx, fileName, r, wb)
	default:
		return nil, errors.UnsupportedFileType(ext)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Debug("workbook parsed",
		zap.String("file", fileName),
		zap.Int("sheets", len(wb.Sheets)),
		zap.Int("partition_titles", len(wb.Partitions)),
		zap.Duration("elapsed", time.Since(start)))
	return wb, nil
}

// readExcel reads all sheets of an OOXML workbook into wb. The partition
// index sheet fills wb.Partitions instead of becoming a sheet.
func (p *Parser) readExcel(r io.Reader, wb *workbook.Workbook) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return errors.ParseError("failed to open workbook", err)
	}
	defer f.Close()

	opts := excelize.Options{RawCellValue: p.rawValues}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, opts)
		if err != nil {
			return errors.ParseError(fmt.Sprintf("failed to read sheet %s", name), err)
		}
		if name == workbook.PartitionIndexSheet {
			wb.Partitions = partitionIndex(rows)
			continue
		}
		wb.Sheets = append(wb.Sheets, workbook.Sheet{Name: name, Grid: rows})
	}
	if len(wb.Sheets) == 0 {
		return errors.ParseError("workbook has no sheets", nil)
	}
	return nil
}

// partitionIndex reads SHEET, PARTITION pairs below the header row.
func partitionIndex(rows [][]string) map[string]string {
	out := make(map[string]string)
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		sheet, tag := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if sheet != "" && tag != "" {
			out[sheet] = tag
		}
	}
	return out
}

// readCSV reads a CSV upload as one sheet named after the file
func (p *Parser) readCSV(fileName string, r io.Reader) ([]workbook.Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ParseError("failed to read CSV file", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ParseError("failed to parse CSV file", err)
	}

	base := filepath.Base(fileName)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return []workbook.Sheet{{Name: name, Grid: rows}}, nil
}

// readLegacy converts a binary .xls upload with headless LibreOffice and
// reads the converted workbook.
func (p *Parser) readLegacy(ctx context.Context, fileName string, r io.Reader, wb *workbook.Workbook) error {
	dir, err := os.MkdirTemp("", "portal-xls-*")
	if err != nil {
		return errors.InternalError("failed to create conversion directory")
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "upload.xls")
	if err := stage(inputPath, r); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, p.sofficeBin, "--headless", "--convert-to", "xlsx", inputPath, "--outdir", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		p.logger.Warn("legacy conversion failed", zap.String("file", fileName), zap.ByteString("output", out), zap.Error(err))
		return errors.ParseError("failed to convert .xls workbook", err)
	}

	converted, err := os.Open(filepath.Join(dir, "upload.xlsx"))
	if err != nil {
		return errors.ParseError("converted workbook missing", err)
	}
	defer converted.Close()
	return p.readExcel(converted, wb)
}

// stage copies the upload to path. A failed close means the file may be
// short, so it fails the upload like a failed copy.
func stage(path string, r io.Reader) error {
	in, err := os.Create(path)
	if err != nil {
		return errors.InternalError("failed to stage upload for conversion")
	}
	if _, err := io.Copy(in, r); err != nil {
		in.Close()
		return errors.ParseError("failed to read upload", err)
	}
	if err := in.Close(); err != nil {
		return errors.ParseError("failed to stage upload", err)
	}
	return nil
}
