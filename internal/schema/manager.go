// Package schema creates and evolves the dynamic tables behind uploads.
// Columns are only ever appended, as nullable text.
package schema

import (
	"context"
	"fmt"

	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/internal/logging"
	"dataportal/ports"

	"go.uber.org/zap"
)

// Change reports what EnsureTable did
type Change struct {
	Created bool
	Added   []string
	Table   table.LogicalTable
}

// Manager reconciles table schemas with required column sets
type Manager struct {
	policy Policy
	logger *zap.Logger
}

// NewManager creates a schema manager. A nil policy reserves the default names.
func NewManager(policy Policy, logger *zap.Logger) *Manager {
	if policy == nil {
		policy = DefaultReserved()
	}
	return &Manager{policy: policy, logger: logging.OrNop(logger).Named("schema")}
}

// Policy returns the table-name policy in force
func (m *Manager) Policy() Policy {
	return m.policy
}

// CheckName validates a table identifier against the identifier rules and the policy.
func (m *Manager) CheckName(name string) error {
	if !ValidIdentifier(name) {
		return errors.InvalidInput(fmt.Sprintf("invalid table name %q", name))
	}
	return m.policy.Check(name)
}

// EnsureTable makes sure name exists with at least the required columns.
// A missing table is created with the system columns; an existing one only
// gains the columns it lacks. Repeated calls with the same input are no-ops.
func (m *Manager) EnsureTable(ctx context.Context, ops ports.TableOps, name string, required []string) (*Change, error) {
	if err := m.CheckName(name); err != nil {
		return nil, err
	}
	for _, c := range required {
		if table.IsSystemColumn(c) {
			return nil, errors.SchemaConflict(fmt.Sprintf("column %s of %s collides with a system column", c, name))
		}
		if !ValidIdentifier(c) {
			return nil, errors.InvalidInput(fmt.Sprintf("invalid column name %q", c))
		}
	}

	change := &Change{}
	exists, err := ops.TableExists(ctx, name)
	if err != nil {
		return nil, errors.DatabaseError("failed to inspect table", err)
	}
	if !exists {
		if err := ops.CreateTable(ctx, name, required); err != nil {
			return nil, errors.DatabaseError("failed to create table", err)
		}
		change.Created = true
		m.logger.Info("table created", zap.String("table", name), zap.Strings("columns", required))
	}

	existing, err := ops.ListColumns(ctx, name)
	if err != nil {
		return nil, errors.DatabaseError("failed to list columns", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, c := range required {
		if !have[c] {
			change.Added = append(change.Added, c)
			have[c] = true
		}
	}
	if len(change.Added) > 0 {
		if err := ops.AddColumns(ctx, name, change.Added); err != nil {
			return nil, errors.DatabaseError("failed to add columns", err)
		}
		existing = append(existing, change.Added...)
		m.logger.Info("columns added", zap.String("table", name), zap.Strings("columns", change.Added))
	}

	change.Table = describe(name, existing)
	return change, nil
}

// Describe loads the logical table, or NOT_FOUND when it does not exist.
func Describe(ctx context.Context, ops ports.TableOps, name string) (table.LogicalTable, error) {
	cols, err := ops.ListColumns(ctx, name)
	if err != nil {
		return table.LogicalTable{}, errors.DatabaseError("failed to list columns", err)
	}
	if len(cols) == 0 {
		return table.LogicalTable{}, errors.NotFound("table " + name)
	}
	return describe(name, cols), nil
}

func describe(name string, cols []string) table.LogicalTable {
	lt := table.LogicalTable{Name: name, Columns: cols}
	lt.HasPartition = lt.HasColumn(table.ColumnPartition)
	return lt
}
