// Package export rebuilds a styled workbook from the rows of an upload table.
package export

import (
	"context"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"dataportal/domain/table"
	"dataportal/domain/workbook"
	"dataportal/internal/errors"
	"dataportal/internal/logging"
	"dataportal/internal/projector"
	"dataportal/internal/schema"
	"dataportal/ports"

	"go.uber.org/zap"
)

// MaxSheetTitle is the longest worksheet name spreadsheet applications accept
const MaxSheetTitle = 31

// UnassignedTitle names the sheet of rows without a partition tag
const UnassignedTitle = "unassigned"

// Options configure the money columns of an export
type Options struct {
	MoneyColumns   []string
	CurrencyFormat string
	// NumericMoney writes parsable money values as numbers instead of text.
	// The re-imported text then follows the number format, not the source.
	NumericMoney bool
}

// Composer turns stored rows into output sheets and hands them to a writer
type Composer struct {
	store  ports.TableStore
	writer ports.WorkbookWriter
	policy schema.Policy
	opts   Options
	money  map[string]bool
	logger *zap.Logger
}

// NewComposer creates an export composer
func NewComposer(store ports.TableStore, writer ports.WorkbookWriter, policy schema.Policy, opts Options, logger *zap.Logger) *Composer {
	if policy == nil {
		policy = schema.DefaultReserved()
	}
	money := make(map[string]bool, len(opts.MoneyColumns))
	for _, c := range opts.MoneyColumns {
		money[c] = true
	}
	return &Composer{
		store:  store,
		writer: writer,
		policy: policy,
		opts:   opts,
		money:  money,
		logger: logging.OrNop(logger).Named("export"),
	}
}

// FileName is the download name of an exported table
func FileName(name string) string {
	return name + ".xlsx"
}

// ExportTable writes the table as a workbook to w
func (c *Composer) ExportTable(ctx context.Context, name string, w io.Writer) error {
	sheets, err := c.Compose(ctx, name)
	if err != nil {
		return err
	}
	if err := c.writer.Write(ctx, w, sheets); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	rows := 0
	for _, s := range sheets {
		rows += len(s.Rows)
	}
	c.logger.Info("table exported", zap.String("table", name), zap.Int("sheets", len(sheets)), zap.Int("rows", rows))
	return nil
}

// Compose groups the table's rows into output sheets: one per partition in
// first-seen order, or a single sheet named after the table when the table
// has no partition column.
func (c *Composer) Compose(ctx context.Context, name string) ([]workbook.OutputSheet, error) {
	if !schema.ValidIdentifier(name) || schema.Reserved(c.policy, name) {
		return nil, errors.NotFound("table " + name)
	}
	lt, err := schema.Describe(ctx, c.store, name)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.SelectWhere(ctx, name, ports.All(), ports.OrderIDAsc)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.EmptyTable(name)
	}

	columns := lt.DataColumns()
	header := make([]string, len(columns))
	hints := make([]workbook.ColumnHint, len(columns))
	for i, col := range columns {
		header[i] = strings.ToUpper(col)
		if c.money[col] {
			hints[i] = workbook.ColumnHint{NumberFormat: c.opts.CurrencyFormat, Numeric: c.opts.NumericMoney}
		}
	}

	// Untagged rows group under the empty key; a table without a partition
	// column groups everything there too.
	var order []string
	groups := make(map[string][][]string)
	for _, r := range rows {
		key := ""
		if lt.HasPartition {
			key = r.Partition
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c.cells(columns, r))
	}

	titles := newTitleSet()
	sheets := make([]workbook.OutputSheet, 0, len(order))
	for _, key := range order {
		title := key
		switch {
		case !lt.HasPartition:
			title = name
		case key == "":
			title = UnassignedTitle
		}
		sheets = append(sheets, workbook.OutputSheet{
			Title:     titles.add(title),
			Partition: key,
			Header:    header,
			Rows:      groups[key],
			Hints:     hints,
		})
	}
	return sheets, nil
}

func (c *Composer) cells(columns []string, r table.Row) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		v := r.Values[col]
		if c.opts.NumericMoney && c.money[col] {
			if d, ok := projector.ParseAmount(v); ok {
				v = d.String()
			}
		}
		out[i] = v
	}
	return out
}

var titleReplacer = strings.NewReplacer("[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_")

// SheetTitle makes a partition tag usable as a worksheet name
func SheetTitle(tag string) string {
	s := strings.Trim(titleReplacer.Replace(strings.TrimSpace(tag)), "'")
	if s == "" {
		s = UnassignedTitle
	}
	return truncateRunes(s, MaxSheetTitle)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// titleSet hands out worksheet names that are unique ignoring case, as
// spreadsheet applications require. The partition index name is taken.
type titleSet map[string]bool

func newTitleSet() titleSet {
	return titleSet{strings.ToLower(workbook.PartitionIndexSheet): true}
}

func (t titleSet) add(tag string) string {
	base := SheetTitle(tag)
	title := base
	for i := 2; t[strings.ToLower(title)]; i++ {
		suffix := "~" + strconv.Itoa(i)
		title = truncateRunes(base, MaxSheetTitle-len(suffix)) + suffix
	}
	t[strings.ToLower(title)] = true
	return title
}
