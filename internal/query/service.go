// Package query reads and edits the rows of upload tables.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/internal/logging"
	"dataportal/internal/schema"
	"dataportal/ports"

	"go.uber.org/zap"
)

// Filter narrows ListRows. A nil Partition does not filter; a pointer to
// the empty string selects rows without a partition tag. Where matches
// column values exactly.
type Filter struct {
	Partition *string
	Search    string
	Where     map[string]string
}

// InPartition is a convenience constructor for a partition filter
func InPartition(p string) Filter {
	return Filter{Partition: &p}
}

// Service answers table, partition and row queries
type Service struct {
	store  ports.TableStore
	policy schema.Policy
	logger *zap.Logger
}

// NewService creates a query service. Tables reserved by policy are hidden.
func NewService(store ports.TableStore, policy schema.Policy, logger *zap.Logger) *Service {
	if policy == nil {
		policy = schema.DefaultReserved()
	}
	return &Service{store: store, policy: policy, logger: logging.OrNop(logger).Named("query")}
}

// describe resolves a visible table; reserved and unknown names are NotFound.
func (s *Service) describe(ctx context.Context, name string) (table.LogicalTable, error) {
	if !schema.ValidIdentifier(name) || schema.Reserved(s.policy, name) {
		return table.LogicalTable{}, errors.NotFound("table " + name)
	}
	return schema.Describe(ctx, s.store, name)
}

// Describe returns the columns of a table
func (s *Service) Describe(ctx context.Context, name string) (table.LogicalTable, error) {
	return s.describe(ctx, name)
}

// ListTables returns the visible tables in lexicographic order
func (s *Service) ListTables(ctx context.Context) ([]string, error) {
	all, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, errors.DatabaseError("failed to list tables", err)
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if !schema.Reserved(s.policy, n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListPartitions returns the distinct partition tags of a table in the
// order they first appear by row identifier. Untagged rows are not listed.
func (s *Service) ListPartitions(ctx context.Context, name string) ([]string, error) {
	lt, err := s.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	if !lt.HasPartition {
		return nil, errors.UnsupportedFilter(fmt.Sprintf("table %s has no partition column", name))
	}
	rows, err := s.store.SelectWhere(ctx, name, ports.All(), ports.OrderIDAsc)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range rows {
		if r.Partition != "" && !seen[r.Partition] {
			seen[r.Partition] = true
			out = append(out, r.Partition)
		}
	}
	return out, nil
}

// ListRows returns the matching rows ordered by identifier with empty
// fields stripped. Search is a case-insensitive substring match over every
// field, partition tag included.
func (s *Service) ListRows(ctx context.Context, name string, f Filter) ([]table.Row, error) {
	lt, err := s.describe(ctx, name)
	if err != nil {
		return nil, err
	}

	pred := ports.All()
	if f.Partition != nil {
		if !lt.HasPartition {
			return nil, errors.UnsupportedFilter(fmt.Sprintf("table %s has no partition column", name))
		}
		pred = ports.InPartition(*f.Partition)
	}
	if len(f.Where) > 0 {
		pred.Equals = make(map[string]string, len(f.Where))
		for col, v := range f.Where {
			if table.IsSystemColumn(col) || !lt.HasColumn(col) {
				return nil, errors.UnsupportedFilter(fmt.Sprintf("table %s has no column %s", name, col))
			}
			pred.Equals[col] = strings.TrimSpace(v)
		}
	}

	rows, err := s.store.SelectWhere(ctx, name, pred, ports.OrderIDAsc)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		r.Values = stripEmpty(r.Values)
		if needle != "" && !matches(r, needle) {
			continue
		}
		out = append(out, r)
	}
	s.logger.Debug("rows listed", zap.String("table", name), zap.Int("matched", len(out)), zap.Int("scanned", len(rows)))
	return out, nil
}

func stripEmpty(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func matches(r table.Row, needle string) bool {
	for _, v := range r.Display() {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
