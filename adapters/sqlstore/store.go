// Package sqlstore implements the dynamic table store on PostgreSQL and SQLite.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"dataportal/ports"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DefaultBatchSize bounds the rows of one INSERT statement
const DefaultBatchSize = 500

// Store is a ports.TableStore backed by a SQL database
type Store struct {
	*ops
	db *sqlx.DB
}

// Option configures a Store
type Option func(*Store)

// WithBatchSize overrides the insert batch size
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps an open connection
func New(db *sqlx.DB, d Dialect, opts ...Option) *Store {
	s := &Store{
		ops: &ops{
			x:         db,
			d:         d,
			batchSize: DefaultBatchSize,
			now:       func() time.Time { return time.Now().UTC() },
		},
		db: db,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a connection for the configured driver and wraps it.
// SQLite is limited to one connection so transactions serialize instead
// of failing on a locked database.
func Connect(driver, dsn string, opts ...Option) (*Store, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Connect(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
	}
	return New(db, d, opts...), nil
}

// DB exposes the underlying connection for repositories sharing it
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect name
func (s *Store) Dialect() string {
	return s.d.Name
}

// Close closes the connection
func (s *Store) Close() error {
	return s.db.Close()
}

// ListTables returns every table in the current schema, sorted by name
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, s.d.listTables); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// Begin starts a transaction
func (s *Store) Begin(ctx context.Context) (ports.TableTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{
		ops: &ops{x: tx, d: s.d, batchSize: s.batchSize, now: s.now},
		tx:  tx,
	}, nil
}

// Tx is a ports.TableTx
type Tx struct {
	*ops
	tx *sqlx.Tx
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

var (
	_ ports.TableStore = (*Store)(nil)
	_ ports.TableTx    = (*Tx)(nil)
)
