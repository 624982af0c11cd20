package schema_test

import (
	"context"
	"testing"

	"dataportal/internal/errors"
	"dataportal/internal/schema"
	"dataportal/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTableCreatesThenAppends(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	m := schema.NewManager(nil, nil)

	change, err := m.EnsureTable(ctx, store, "saham", []string{"no", "nama", "modal"})
	require.NoError(t, err)
	assert.True(t, change.Created)
	assert.Empty(t, change.Added)
	assert.Equal(t, []string{"no", "nama", "modal"}, change.Table.DataColumns())
	assert.True(t, change.Table.HasPartition)

	change, err = m.EnsureTable(ctx, store, "saham", []string{"nama", "alamat"})
	require.NoError(t, err)
	assert.False(t, change.Created)
	assert.Equal(t, []string{"alamat"}, change.Added)
	assert.Equal(t, []string{"no", "nama", "modal", "alamat"}, change.Table.DataColumns())
}

func TestEnsureTableIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	m := schema.NewManager(nil, nil)
	cols := []string{"col_1", "col_2"}

	_, err := m.EnsureTable(ctx, store, "modal", cols)
	require.NoError(t, err)
	before, err := store.ListColumns(ctx, "modal")
	require.NoError(t, err)

	change, err := m.EnsureTable(ctx, store, "modal", cols)
	require.NoError(t, err)
	assert.False(t, change.Created)
	assert.Empty(t, change.Added)

	after, err := store.ListColumns(ctx, "modal")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnsureTableRejections(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	m := schema.NewManager(schema.DefaultReserved("users"), nil)

	tests := []struct {
		name  string
		table string
		cols  []string
		code  string
	}{
		{"reserved name", "documents", []string{"a"}, errors.CodeSchemaConflict},
		{"configured reserved name", "users", []string{"a"}, errors.CodeSchemaConflict},
		{"catalog prefix", "pg_stats", []string{"a"}, errors.CodeSchemaConflict},
		{"system column", "saham", []string{"id"}, errors.CodeSchemaConflict},
		{"bad identifier", "Saham Baru", []string{"a"}, errors.CodeInvalidInput},
		{"bad column", "saham", []string{"Nama"}, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.EnsureTable(ctx, store, tt.table, tt.cols)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	exists, err := store.TableExists(ctx, "saham")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDescribeMissingTable(t *testing.T) {
	store := testkit.OpenStore(t)
	_, err := schema.Describe(context.Background(), store, "nope")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestTableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data Saham", "data_saham"},
		{"DataModal", "data_modal"},
		{"perda 2024", "perda_2024"},
		{"  Modal (Rp) ", "modal_rp"},
		{"2024 modal", "t_2024_modal"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := schema.TableName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := schema.TableName(" !! ")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}
