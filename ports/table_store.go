package ports

import (
	"context"

	"dataportal/domain/table"
)

// Predicate selects rows of a managed table. Zero fields do not filter.
// An empty Equals value matches NULL as well as the empty string.
type Predicate struct {
	ID          int64
	Partition   string
	ByPartition bool
	Equals      map[string]string
}

// All matches every row
func All() Predicate { return Predicate{} }

// ByID matches one row
func ByID(id int64) Predicate { return Predicate{ID: id} }

// InPartition matches the rows tagged with partition
func InPartition(partition string) Predicate {
	return Predicate{Partition: partition, ByPartition: true}
}

// Order is the row order of a select
type Order int

const (
	OrderIDAsc Order = iota
	OrderIDDesc
)

// TableOps are the generic table operations available both on a store and
// inside one of its transactions.
type TableOps interface {
	TableExists(ctx context.Context, name string) (bool, error)
	ListColumns(ctx context.Context, name string) ([]string, error)
	CreateTable(ctx context.Context, name string, columns []string) error
	AddColumns(ctx context.Context, name string, columns []string) error
	InsertMany(ctx context.Context, name string, rows []table.Row) (int, error)
	InsertOne(ctx context.Context, name string, row table.Row) (int64, error)
	UpdateWhere(ctx context.Context, name string, pred Predicate, values map[string]string) (int64, error)
	DeleteWhere(ctx context.Context, name string, pred Predicate) (int64, error)
	SelectWhere(ctx context.Context, name string, pred Predicate, order Order) ([]table.Row, error)
}

// TableStore is the shared backing store of all dynamic tables
type TableStore interface {
	TableOps
	ListTables(ctx context.Context) ([]string, error)
	Begin(ctx context.Context) (TableTx, error)
	Dialect() string
}

// TableTx is one unit of work against the table store
type TableTx interface {
	TableOps
	Commit() error
	Rollback() error
}
