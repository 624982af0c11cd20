// Package ingest loads uploaded workbooks into dynamic tables.
//
// A file is parsed once, every sheet is planned in parallel (header, width,
// projection), and the plans are then committed one sheet per transaction
// in sheet order: ensure schema, delete the sheet's partition, insert.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"dataportal/domain/core"
	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/internal/logging"
	"dataportal/internal/schema"
	"dataportal/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tune a single import
type Options struct {
	Mode         table.Mode
	Layout       table.Layout
	Partition    string
	EmptyHeaders table.EmptyHeaderPolicy
}

// Config holds the coordinator limits
type Config struct {
	MaxPositionalCols int
	Lookahead         int
	EmptyHeaders      table.EmptyHeaderPolicy
	MaxUploadBytes    int64
}

// DefaultConfig mirrors the configuration defaults
func DefaultConfig() Config {
	return Config{
		MaxPositionalCols: 7,
		Lookahead:         1000,
		EmptyHeaders:      table.EmptyHeaderFallback,
		MaxUploadBytes:    20 << 20,
	}
}

// Coordinator orchestrates parse, header, schema, projection and load
type Coordinator struct {
	store  ports.TableStore
	parser ports.WorkbookParser
	schema *schema.Manager
	runs   ports.ImportRunRepository
	cfg    Config
	locks  *keyedMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator wires a coordinator. runs may be nil to skip import history.
func NewCoordinator(store ports.TableStore, parser ports.WorkbookParser, sm *schema.Manager, runs ports.ImportRunRepository, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.MaxPositionalCols <= 0 {
		cfg.MaxPositionalCols = DefaultConfig().MaxPositionalCols
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultConfig().Lookahead
	}
	if cfg.EmptyHeaders == "" {
		cfg.EmptyHeaders = table.EmptyHeaderFallback
	}
	return &Coordinator{
		store:  store,
		parser: parser,
		schema: sm,
		runs:   runs,
		cfg:    cfg,
		locks:  newKeyedMutex(),
		logger: logging.OrNop(logger).Named("ingest"),
		now:    time.Now,
	}
}

func (c *Coordinator) normalizeOptions(opts Options) (Options, error) {
	switch opts.Mode {
	case "":
		opts.Mode = table.ModeLabeled
	case table.ModeLabeled, table.ModePositional:
	default:
		return opts, errors.InvalidInput(fmt.Sprintf("unknown mode %q", opts.Mode))
	}
	switch opts.EmptyHeaders {
	case "":
		opts.EmptyHeaders = c.cfg.EmptyHeaders
	case table.EmptyHeaderFallback, table.EmptyHeaderDrop:
	default:
		return opts, errors.InvalidInput(fmt.Sprintf("unknown empty header policy %q", opts.EmptyHeaders))
	}
	if opts.Layout.DataRow == 0 {
		opts.Layout = table.DefaultLayout
	}
	opts.Partition = strings.TrimSpace(opts.Partition)
	return opts, nil
}

// ImportFile loads every sheet of the uploaded file into tableName.
//
// File-level problems (unsupported type, oversize, unreadable content,
// invalid table name) return an error before anything is written. Sheet-level
// failures are recorded in the report and do not undo sheets committed
// before them. A cancelled context stops before the next sheet and returns
// the partial report together with the context error.
func (c *Coordinator) ImportFile(ctx context.Context, fileName string, r io.Reader, tableName string, opts Options) (*table.ImportReport, error) {
	started := c.now()

	opts, err := c.normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	name, err := schema.TableName(tableName)
	if err != nil {
		return nil, err
	}
	if err := c.schema.CheckName(name); err != nil {
		return nil, err
	}
	if !c.parser.Supports(fileName) {
		return nil, errors.UnsupportedFileType(filepath.Ext(fileName))
	}

	data, err := c.readLimited(r)
	if err != nil {
		return nil, err
	}
	wb, err := c.parser.Parse(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("workbook rejected", zap.String("file", fileName), zap.Error(err))
		return nil, err
	}
	if opts.Partition != "" && len(wb.Sheets) > 1 {
		return nil, errors.InvalidInput("a partition override needs a single-sheet file")
	}

	report := &table.ImportReport{
		RunID: core.NewID(),
		Table: name,
		File:  fileName,
		Mode:  opts.Mode,
	}
	c.logger.Info("import started",
		zap.String("run_id", report.RunID),
		zap.String("table", name),
		zap.String("file", fileName),
		zap.String("mode", string(opts.Mode)),
		zap.String("layout", opts.Layout.Name),
		zap.Int("sheets", len(wb.Sheets)))

	plans := make([]*sheetPlan, len(wb.Sheets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, sh := range wb.Sheets {
		partition := wb.PartitionOf(sh.Name)
		if opts.Partition != "" {
			partition = opts.Partition
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plans[i] = c.planSheet(sh, partition, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var runErr error
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		report.Sheets = append(report.Sheets, c.runSheet(ctx, name, plan, report))
	}
	for _, s := range report.Sheets {
		report.RowsImported += s.RowsImported
	}
	if report.Warnings == nil {
		report.Warnings = []table.Warning{}
	}

	c.logger.Info("import finished",
		zap.String("run_id", report.RunID),
		zap.String("table", name),
		zap.Int("rows", report.RowsImported),
		zap.Int("warnings", len(report.Warnings)),
		zap.String("status", report.Status()))
	c.recordRun(report, started)
	return report, runErr
}

func (c *Coordinator) readLimited(r io.Reader) ([]byte, error) {
	if c.cfg.MaxUploadBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.ParseError("failed to read upload", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, errors.ParseError("failed to read upload", err)
	}
	if int64(len(data)) > c.cfg.MaxUploadBytes {
		return nil, errors.FileTooLarge(c.cfg.MaxUploadBytes)
	}
	return data, nil
}

// runSheet turns one plan into a SheetResult, committing it unless skipped.
func (c *Coordinator) runSheet(ctx context.Context, name string, plan *sheetPlan, report *table.ImportReport) table.SheetResult {
	res := table.SheetResult{
		Sheet:       plan.sheet,
		Partition:   plan.partition,
		Title:       plan.title,
		Columns:     plan.header.Names(),
		RowsSkipped: plan.skippedRows,
	}
	log := c.logger.With(zap.String("table", name), zap.String("sheet", plan.sheet))

	if plan.skipped() {
		res.Skipped = true
		report.Warn(plan.sheet, plan.skipKind, plan.skipReason)
		log.Info("sheet skipped", zap.String("reason", plan.skipReason))
		return res
	}
	if plan.blank {
		report.Warn(plan.sheet, table.WarnEmptySheet, "sheet has no non-empty data rows, partition cleared")
		log.Info("blank sheet clears its partition", zap.String("partition", plan.partition))
	} else if plan.skippedRows > 0 {
		report.Warn(plan.sheet, table.WarnSkippedRows, fmt.Sprintf("%d empty rows skipped", plan.skippedRows))
		log.Info("empty rows skipped", zap.Int("rows", plan.skippedRows))
	}

	n, err := c.commitSheet(ctx, name, plan)
	if err != nil {
		res.Error = err.Error()
		kind := table.WarnSheetFailed
		if errors.HasCode(err, errors.CodeSchemaConflict) {
			kind = table.WarnSchemaConflict
		}
		report.Warn(plan.sheet, kind, err.Error())
		log.Error("sheet import failed", zap.Error(err))
		return res
	}
	res.RowsImported = n
	return res
}

// commitSheet replaces the sheet's partition inside one transaction.
// Imports into the same table are serialized within this process.
func (c *Coordinator) commitSheet(ctx context.Context, name string, plan *sheetPlan) (n int, err error) {
	unlock := c.locks.Lock(name)
	defer unlock()

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	change, err := c.schema.EnsureTable(ctx, tx, name, plan.header.Names())
	if err != nil {
		return 0, err
	}

	deleted, err := tx.DeleteWhere(ctx, name, ports.InPartition(plan.partition))
	if err != nil {
		return 0, err
	}

	rows := make([]table.Row, len(plan.records))
	for i, values := range plan.records {
		rows[i] = table.Row{Partition: plan.partition, Values: values}
	}
	n, err = tx.InsertMany(ctx, name, rows)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.DatabaseError("failed to commit sheet", err)
	}

	c.logger.Info("partition replaced",
		zap.String("table", name),
		zap.String("partition", plan.partition),
		zap.Bool("table_created", change.Created),
		zap.Strings("columns_added", change.Added),
		zap.Int64("rows_deleted", deleted),
		zap.Int("rows_inserted", n))
	return n, nil
}

// recordRun persists the run summary. History is best effort: a failure is
// logged and never changes the import outcome.
func (c *Coordinator) recordRun(report *table.ImportReport, started time.Time) {
	if c.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.runs.Create(ctx, table.RunFromReport(report, started, c.now())); err != nil {
		c.logger.Warn("failed to record import run", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// ListImportRuns returns the most recent imports into the canonical table name
func (c *Coordinator) ListImportRuns(ctx context.Context, tableName string, limit int) ([]*table.ImportRun, error) {
	if c.runs == nil {
		return []*table.ImportRun{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if !schema.ValidIdentifier(tableName) {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid table name %q", tableName))
	}
	return c.runs.ListByTable(ctx, tableName, limit)
}
