package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/ports"

	"github.com/jmoiron/sqlx"
)

// ops implements ports.TableOps over either a *sqlx.DB or a *sqlx.Tx.
type ops struct {
	x         sqlx.ExtContext
	d         Dialect
	batchSize int
	now       func() time.Time
}

func (o *ops) q(ident string) string {
	return o.d.Quote(ident)
}

// TableExists reports whether the named table exists
func (o *ops) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, o.x, &n, o.d.Rebind(o.d.tableExists), name); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return n > 0, nil
}

// ListColumns returns the table's columns in ordinal order; empty when the table is missing
func (o *ops) ListColumns(ctx context.Context, name string) ([]string, error) {
	var cols []string
	if err := sqlx.SelectContext(ctx, o.x, &cols, o.d.Rebind(o.d.listColumns), name); err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", name, err)
	}
	return cols, nil
}

// CreateTable creates the table with the system columns and the given text columns
func (o *ops) CreateTable(ctx context.Context, name string, columns []string) error {
	defs := []string{o.d.IDColumn(), o.q(table.ColumnPartition) + " TEXT"}
	for _, c := range columns {
		if table.IsSystemColumn(c) {
			continue
		}
		defs = append(defs, o.q(c)+" TEXT")
	}
	defs = append(defs,
		o.q(table.ColumnCreatedAt)+" "+o.d.TimestampType(),
		o.q(table.ColumnUpdatedAt)+" "+o.d.TimestampType(),
	)

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", o.q(name), strings.Join(defs, ",\n\t"))
	if _, err := o.x.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		o.q("idx_"+name+"_"+table.ColumnPartition), o.q(name), o.q(table.ColumnPartition))
	if _, err := o.x.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("failed to index %s: %w", name, err)
	}
	return nil
}

// AddColumns appends nullable text columns. A column that already exists is not an error.
func (o *ops) AddColumns(ctx context.Context, name string, columns []string) error {
	for _, c := range columns {
		stmt := fmt.Sprintf(o.d.addColumn, o.q(name), o.q(c))
		if _, err := o.x.ExecContext(ctx, stmt); err != nil {
			if o.d.IsDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("failed to add column %s to %s: %w", c, name, err)
		}
	}
	return nil
}

// insertColumns returns the column list covering every row, in first-seen order.
func insertColumns(rows []table.Row) []string {
	seen := make(map[string]bool)
	var data []string
	withPartition := false
	for _, r := range rows {
		if r.Partition != "" {
			withPartition = true
		}
		for _, k := range table.SortedKeys(r.Values) {
			if !seen[k] && !table.IsSystemColumn(k) {
				seen[k] = true
				data = append(data, k)
			}
		}
	}
	cols := make([]string, 0, len(data)+3)
	if withPartition {
		cols = append(cols, table.ColumnPartition)
	}
	cols = append(cols, data...)
	return append(cols, table.ColumnCreatedAt, table.ColumnUpdatedAt)
}

func (o *ops) rowArgs(cols []string, r table.Row, now time.Time) []interface{} {
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		switch c {
		case table.ColumnPartition:
			if r.Partition != "" {
				args[i] = r.Partition
			}
		case table.ColumnCreatedAt:
			args[i] = orNow(r.CreatedAt, now)
		case table.ColumnUpdatedAt:
			args[i] = orNow(r.UpdatedAt, now)
		default:
			if v, ok := r.Values[c]; ok {
				args[i] = v
			}
		}
	}
	return args
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// InsertMany inserts rows in multi-row statements bounded by the batch size
// and the dialect's bind-variable limit. It returns the number of rows written.
func (o *ops) InsertMany(ctx context.Context, name string, rows []table.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := insertColumns(rows)
	batch := o.batchSize
	if perStmt := o.d.MaxParams / len(cols); perStmt < batch {
		batch = perStmt
	}
	if batch < 1 {
		batch = 1
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = o.q(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	now := o.now()

	written := 0
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		tuples := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			tuples[i] = tuple
			args = append(args, o.rowArgs(cols, r, now)...)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			o.q(name), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
		if _, err := o.x.ExecContext(ctx, o.d.Rebind(stmt), args...); err != nil {
			return written, fmt.Errorf("failed to insert rows %d-%d into %s: %w", start+1, end, name, err)
		}
		written += len(chunk)
	}
	return written, nil
}

// InsertOne inserts a single row and returns its identifier
func (o *ops) InsertOne(ctx context.Context, name string, row table.Row) (int64, error) {
	cols := insertColumns([]table.Row{row})
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = o.q(c)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		o.q(name), strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "), o.q(table.ColumnID))

	var id int64
	if err := o.x.QueryRowxContext(ctx, o.d.Rebind(stmt), o.rowArgs(cols, row, o.now())...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert row into %s: %w", name, err)
	}
	return id, nil
}

func (o *ops) where(pred ports.Predicate) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if pred.ID != 0 {
		conds = append(conds, o.q(table.ColumnID)+" = ?")
		args = append(args, pred.ID)
	}
	if pred.ByPartition {
		if pred.Partition == "" {
			conds = append(conds, fmt.Sprintf("(%[1]s IS NULL OR %[1]s = '')", o.q(table.ColumnPartition)))
		} else {
			conds = append(conds, o.q(table.ColumnPartition)+" = ?")
			args = append(args, pred.Partition)
		}
	}
	for _, k := range table.SortedKeys(pred.Equals) {
		if pred.Equals[k] == "" {
			conds = append(conds, fmt.Sprintf("(%[1]s IS NULL OR %[1]s = '')", o.q(k)))
			continue
		}
		conds = append(conds, o.q(k)+" = ?")
		args = append(args, pred.Equals[k])
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateWhere sets the given columns on matching rows and touches updated_at.
// An empty value stores NULL.
func (o *ops) UpdateWhere(ctx context.Context, name string, pred ports.Predicate, values map[string]string) (int64, error) {
	var sets []string
	var args []interface{}
	for _, k := range table.SortedKeys(values) {
		if table.IsSystemColumn(k) {
			continue
		}
		sets = append(sets, o.q(k)+" = ?")
		if v := values[k]; v != "" {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	sets = append(sets, o.q(table.ColumnUpdatedAt)+" = ?")
	args = append(args, o.now())

	where, whereArgs := o.where(pred)
	stmt := fmt.Sprintf("UPDATE %s SET %s%s", o.q(name), strings.Join(sets, ", "), where)
	res, err := o.x.ExecContext(ctx, o.d.Rebind(stmt), append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// DeleteWhere removes matching rows and returns how many were deleted
func (o *ops) DeleteWhere(ctx context.Context, name string, pred ports.Predicate) (int64, error) {
	where, args := o.where(pred)
	stmt := fmt.Sprintf("DELETE FROM %s%s", o.q(name), where)
	res, err := o.x.ExecContext(ctx, o.d.Rebind(stmt), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// SelectWhere returns matching rows ordered by identifier
func (o *ops) SelectWhere(ctx context.Context, name string, pred ports.Predicate, order ports.Order) ([]table.Row, error) {
	cols, err := o.ListColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.NotFound("table " + name)
	}

	quoted := make([]string, len(cols))
	hasID := false
	for i, c := range cols {
		quoted[i] = o.q(c)
		hasID = hasID || c == table.ColumnID
	}
	where, args := o.where(pred)
	stmt := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(quoted, ", "), o.q(name), where)
	if hasID {
		dir := "ASC"
		if order == ports.OrderIDDesc {
			dir = "DESC"
		}
		stmt += " ORDER BY " + o.q(table.ColumnID) + " " + dir
	}

	rows, err := o.x.QueryxContext(ctx, o.d.Rebind(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	var out []table.Row
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", name, err)
		}
		out = append(out, toRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", name, err)
	}
	return out, nil
}
