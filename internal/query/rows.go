package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/ports"

	"go.uber.org/zap"
)

// GetRow returns one row by identifier
func (s *Service) GetRow(ctx context.Context, name string, id int64) (table.Row, error) {
	if _, err := s.describe(ctx, name); err != nil {
		return table.Row{}, err
	}
	rows, err := s.store.SelectWhere(ctx, name, ports.ByID(id), ports.OrderIDAsc)
	if err != nil {
		return table.Row{}, err
	}
	if len(rows) == 0 {
		return table.Row{}, errors.NotFound(fmt.Sprintf("row %d of %s", id, name))
	}
	return rows[0], nil
}

// checkValues trims values and rejects columns the table does not carry.
func checkValues(lt table.LogicalTable, values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if table.IsSystemColumn(k) || !lt.HasColumn(k) {
			return nil, errors.InvalidInput(fmt.Sprintf("table %s has no column %s", lt.Name, k))
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// InsertRow adds a single row. An empty partition means the manual
// partition. At least one value must be non-empty.
func (s *Service) InsertRow(ctx context.Context, name, partition string, values map[string]string) (table.Row, error) {
	lt, err := s.describe(ctx, name)
	if err != nil {
		return table.Row{}, err
	}
	clean, err := checkValues(lt, values)
	if err != nil {
		return table.Row{}, err
	}
	clean = stripEmpty(clean)
	if len(clean) == 0 {
		return table.Row{}, errors.ValidationError("at least one value is required")
	}

	row := table.Row{Values: clean}
	if lt.HasPartition {
		row.Partition = strings.TrimSpace(partition)
		if row.Partition == "" {
			row.Partition = table.ManualPartition
		}
	}
	id, err := s.store.InsertOne(ctx, name, row)
	if err != nil {
		return table.Row{}, errors.DatabaseError("failed to insert row", err)
	}
	s.logger.Info("row inserted", zap.String("table", name), zap.Int64("id", id), zap.String("partition", row.Partition))
	return s.GetRow(ctx, name, id)
}

// UpdateRow overwrites the given fields of one row. An empty value clears
// the field, but the row must keep at least one non-empty value.
func (s *Service) UpdateRow(ctx context.Context, name string, id int64, values map[string]string) (table.Row, error) {
	lt, err := s.describe(ctx, name)
	if err != nil {
		return table.Row{}, err
	}
	clean, err := checkValues(lt, values)
	if err != nil {
		return table.Row{}, err
	}
	if len(clean) == 0 {
		return table.Row{}, errors.ValidationError("no values to update")
	}

	current, err := s.GetRow(ctx, name, id)
	if err != nil {
		return table.Row{}, err
	}
	merged := make(map[string]string, len(current.Values)+len(clean))
	for k, v := range current.Values {
		merged[k] = v
	}
	for k, v := range clean {
		merged[k] = v
	}
	if len(stripEmpty(merged)) == 0 {
		return table.Row{}, errors.ValidationError("a row must keep at least one value")
	}

	n, err := s.store.UpdateWhere(ctx, name, ports.ByID(id), clean)
	if err != nil {
		return table.Row{}, errors.DatabaseError("failed to update row", err)
	}
	if n == 0 {
		return table.Row{}, errors.NotFound(fmt.Sprintf("row %d of %s", id, name))
	}
	s.logger.Info("row updated", zap.String("table", name), zap.Int64("id", id), zap.Int("fields", len(clean)))
	return s.GetRow(ctx, name, id)
}

// DeleteRow removes one row
func (s *Service) DeleteRow(ctx context.Context, name string, id int64) error {
	if _, err := s.describe(ctx, name); err != nil {
		return err
	}
	n, err := s.store.DeleteWhere(ctx, name, ports.ByID(id))
	if err != nil {
		return errors.DatabaseError("failed to delete row", err)
	}
	if n == 0 {
		return errors.NotFound(fmt.Sprintf("row %d of %s", id, name))
	}
	s.logger.Info("row deleted", zap.String("table", name), zap.Int64("id", id))
	return nil
}

// ClearTable deletes every row and keeps the schema
func (s *Service) ClearTable(ctx context.Context, name string) (int64, error) {
	if _, err := s.describe(ctx, name); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteWhere(ctx, name, ports.All())
	if err != nil {
		return 0, errors.DatabaseError("failed to clear table", err)
	}
	s.logger.Info("table cleared", zap.String("table", name), zap.Int64("rows", n))
	return n, nil
}

// DeletePartition deletes the rows of one partition
func (s *Service) DeletePartition(ctx context.Context, name, partition string) (int64, error) {
	lt, err := s.describe(ctx, name)
	if err != nil {
		return 0, err
	}
	if !lt.HasPartition {
		return 0, errors.UnsupportedFilter(fmt.Sprintf("table %s has no partition column", name))
	}
	n, err := s.store.DeleteWhere(ctx, name, ports.InPartition(partition))
	if err != nil {
		return 0, errors.DatabaseError("failed to delete partition", err)
	}
	s.logger.Info("partition deleted", zap.String("table", name), zap.String("partition", partition), zap.Int64("rows", n))
	return n, nil
}

// ParseRowID parses a row identifier from a path segment
func ParseRowID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidInput(fmt.Sprintf("invalid row id %q", s))
	}
	return id, nil
}
