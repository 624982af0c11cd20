package ingest_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"dataportal/adapters/excel"
	"dataportal/adapters/sqlstore"
	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/internal/ingest"
	"dataportal/internal/schema"
	"dataportal/internal/testkit"
	"dataportal/ports"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *table.ImportRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) ListByTable(ctx context.Context, tableName string, limit int) ([]*table.ImportRun, error) {
	args := m.Called(ctx, tableName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*table.ImportRun), args.Error(1)
}

func newCoordinator(t *testing.T, store ports.TableStore, runs ports.ImportRunRepository) *ingest.Coordinator {
	t.Helper()
	return ingest.NewCoordinator(store, excel.NewParser(), schema.NewManager(nil, nil), runs, ingest.DefaultConfig(), nil)
}

func partitionRows(t *testing.T, store ports.TableStore, name, partition string) []table.Row {
	t.Helper()
	rows, err := store.SelectWhere(context.Background(), name, ports.InPartition(partition), ports.OrderIDAsc)
	require.NoError(t, err)
	return rows
}

func kotaWorkbook(t *testing.T, kotaARows int) []byte {
	sheetA := testkit.Sheet("Kota A", testkit.Row("No", "Nama", "Modal"))
	for i := 1; i <= kotaARows; i++ {
		sheetA.Rows = append(sheetA.Rows, testkit.Row(i, "PT "+strings.Repeat("X", i), i*1000))
	}
	sheetB := testkit.Sheet("Kota B", testkit.Row("No", "Nama", "Modal"))
	return testkit.BuildXLSX(t, sheetA, sheetB)
}

func TestImportTwoSheetsThenReplacePartition(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	report, err := c.ImportFile(ctx, "modal.xlsx", bytes.NewReader(kotaWorkbook(t, 3)), "setoran modal", ingest.Options{})
	require.NoError(t, err)

	assert.Equal(t, "setoran_modal", report.Table)
	assert.Equal(t, 3, report.RowsImported)
	require.Len(t, report.Sheets, 2)
	assert.Equal(t, 3, report.Sheets[0].RowsImported)
	assert.True(t, report.Sheets[1].Skipped)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "Kota B", report.Warnings[0].Sheet)
	assert.Equal(t, table.WarnEmptySheet, report.Warnings[0].Kind)
	assert.Equal(t, table.StatusOK, report.Status())

	lt, err := schema.Describe(ctx, store, "setoran_modal")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"no", "nama", "modal"}, lt.DataColumns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, lt.HasPartition)

	rows := partitionRows(t, store, "setoran_modal", "Kota A")
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]string{"no": "1", "nama": "PT X", "modal": "1000"}, rows[0].Values)
	assert.Empty(t, partitionRows(t, store, "setoran_modal", "Kota B"))

	// Re-import with two rows replaces Kota A only.
	report, err = c.ImportFile(ctx, "modal.xlsx", bytes.NewReader(kotaWorkbook(t, 2)), "setoran modal", ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.RowsImported)
	assert.Len(t, partitionRows(t, store, "setoran_modal", "Kota A"), 2)
}

func TestBlankSheetClearsItsPartition(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	_, err := c.ImportFile(ctx, "modal.xlsx", bytes.NewReader(kotaWorkbook(t, 3)), "setoran_modal", ingest.Options{})
	require.NoError(t, err)
	require.Len(t, partitionRows(t, store, "setoran_modal", "Kota A"), 3)

	blank := testkit.BuildXLSX(t, testkit.Sheet("Kota A",
		testkit.Row("No", "Nama", "Modal"),
		testkit.Row(" ", "", "  "),
		testkit.Row("", "\t", ""),
	))
	report, err := c.ImportFile(ctx, "kosong.xlsx", bytes.NewReader(blank), "setoran_modal", ingest.Options{})
	require.NoError(t, err)

	assert.Zero(t, report.RowsImported)
	require.Len(t, report.Sheets, 1)
	assert.False(t, report.Sheets[0].Skipped)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, table.WarnEmptySheet, report.Warnings[0].Kind)
	assert.Empty(t, partitionRows(t, store, "setoran_modal", "Kota A"))
}

func TestConcurrentImportsIntoOneTable(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	const uploads = 6
	files := make([][]byte, uploads)
	for i := range files {
		files[i] = kotaWorkbook(t, i+1)
	}

	var wg sync.WaitGroup
	errs := make([]error, uploads)
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ImportFile(ctx, "modal.xlsx", bytes.NewReader(files[i]), "setoran_modal", ingest.Options{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Each upload replaced the whole partition, so exactly one upload's rows
	// remain and they are numbered from 1 without gaps.
	rows := partitionRows(t, store, "setoran_modal", "Kota A")
	require.NotEmpty(t, rows)
	require.LessOrEqual(t, len(rows), uploads)
	for i, r := range rows {
		assert.Equal(t, strconv.Itoa(i+1), r.Values["no"])
	}
}

func TestImportLeavesOtherPartitionsUntouched(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	both := testkit.BuildXLSX(t,
		testkit.Sheet("Kota A", testkit.Row("Nama"), testkit.Row("a1"), testkit.Row("a2")),
		testkit.Sheet("Kota B", testkit.Row("Nama"), testkit.Row("b1")),
	)
	_, err := c.ImportFile(ctx, "both.xlsx", bytes.NewReader(both), "pemegang_saham", ingest.Options{})
	require.NoError(t, err)

	onlyA := testkit.BuildXLSX(t,
		testkit.Sheet("Kota A", testkit.Row("Nama", "Alamat"), testkit.Row("a3", "Bandung")),
	)
	report, err := c.ImportFile(ctx, "a.xlsx", bytes.NewReader(onlyA), "pemegang_saham", ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.RowsImported)

	rowsA := partitionRows(t, store, "pemegang_saham", "Kota A")
	require.Len(t, rowsA, 1)
	assert.Equal(t, "Bandung", rowsA[0].Values["alamat"])

	rowsB := partitionRows(t, store, "pemegang_saham", "Kota B")
	require.Len(t, rowsB, 1)
	assert.Equal(t, map[string]string{"nama": "b1"}, rowsB[0].Values)
}

func TestImportReportsSkippedRowsAndZeroColumns(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	data := testkit.BuildXLSX(t,
		testkit.Sheet("Data",
			testkit.Row("Nama", "Kota"),
			testkit.Row("Andi", "Medan"),
			testkit.Row(" ", " "),
			testkit.Row(" "),
			testkit.Row("Budi", nil),
		),
		testkit.Sheet("Kosong", testkit.Row(nil), testkit.Row(nil, "x")),
	)
	report, err := c.ImportFile(ctx, "data.xlsx", bytes.NewReader(data), "anggota", ingest.Options{EmptyHeaders: table.EmptyHeaderDrop})
	require.NoError(t, err)

	assert.Equal(t, 2, report.RowsImported)
	assert.Equal(t, 2, report.Sheets[0].RowsSkipped)
	assert.True(t, report.Sheets[1].Skipped)
	kinds := make([]string, 0, len(report.Warnings))
	for _, w := range report.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []string{table.WarnSkippedRows, table.WarnZeroColumns}, kinds)
}

func TestImportPositionalMode(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	data := testkit.BuildXLSX(t, testkit.Sheet("Perda",
		testkit.Row("1", "Jawa Barat", "12/2019"),
		testkit.Row("2", "Bali", "3/2020", nil, "catatan"),
	))
	report, err := c.ImportFile(ctx, "perda.xlsx", bytes.NewReader(data), "perda", ingest.Options{Mode: table.ModePositional})
	require.NoError(t, err)

	assert.Equal(t, []string{"col_1", "col_2", "col_3", "col_4", "col_5"}, report.Sheets[0].Columns)
	// Row 1 is the default layout's header row and is not loaded.
	rows := partitionRows(t, store, "perda", "Perda")
	require.Len(t, rows, 1)
	assert.Equal(t, "catatan", rows[0].Values["col_5"])
	_, hasCol4 := rows[0].Values["col_4"]
	assert.False(t, hasCol4)
}

func TestImportBylawsLayout(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	data := testkit.BuildXLSX(t, testkit.Sheet("Sheet1",
		testkit.Row("LAMPIRAN"),
		testkit.Row(),
		testkit.Row(),
		testkit.Row(nil, "DATA PERDA PENYERTAAN MODAL"),
		testkit.Row(nil, "PROVINSI", "JAWA BARAT"),
		testkit.Row("ignored", "1", "Kab. Bogor", "12", "2019", "Tunai", nil, nil, "5000000", "lunas", "ignored"),
	))
	report, err := c.ImportFile(ctx, "perda.xlsx", bytes.NewReader(data), "perda", ingest.Options{
		Layout:    table.BylawsLayout,
		Partition: "Jawa Barat",
	})
	require.NoError(t, err)

	require.Len(t, report.Sheets, 1)
	assert.Equal(t, "DATA PERDA PENYERTAAN MODAL - PROVINSI | JAWA BARAT", report.Sheets[0].Title)
	assert.Equal(t, "Jawa Barat", report.Sheets[0].Partition)

	rows := partitionRows(t, store, "perda", "Jawa Barat")
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"no":                      "1",
		"provinsi_kab_kota":       "Kab. Bogor",
		"no_perda":                "12",
		"tahun":                   "2019",
		"mekanisme_setoran_modal": "Tunai",
		"tunai":                   "5000000",
		"keterangan":              "lunas",
	}, rows[0].Values)
}

func TestImportCSVUsesBaseNameAsPartition(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	csv := "\ufeffNama,Jumlah Modal (Rp)\nPT A,1.000.000\n,\n"
	report, err := c.ImportFile(ctx, "setoran 2024.csv", strings.NewReader(csv), "setoran", ingest.Options{})
	require.NoError(t, err)

	assert.Equal(t, "setoran 2024", report.Sheets[0].Partition)
	assert.Equal(t, 1, report.Sheets[0].RowsSkipped)
	rows := partitionRows(t, store, "setoran", "setoran 2024")
	require.Len(t, rows, 1)
	assert.Equal(t, "1.000.000", rows[0].Values["jumlah_modal__rp_"])
}

func TestImportFileLevelRejections(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	c := ingest.NewCoordinator(store, excel.NewParser(), schema.NewManager(nil, nil), nil,
		ingest.Config{MaxUploadBytes: 64}, nil)

	tests := []struct {
		name     string
		file     string
		body     string
		table    string
		opts     ingest.Options
		wantCode string
	}{
		{name: "unsupported type", file: "notes.txt", body: "x", table: "t", wantCode: errors.CodeUnsupportedFileType},
		{name: "corrupt workbook", file: "bad.xlsx", body: "not a zip", table: "t", wantCode: errors.CodeParseError},
		{name: "too large", file: "big.csv", body: strings.Repeat("a,b\n", 40), table: "t", wantCode: errors.CodeFileTooLarge},
		{name: "reserved table", file: "a.csv", body: "a\n1\n", table: "documents", wantCode: errors.CodeSchemaConflict},
		{name: "empty table name", file: "a.csv", body: "a\n1\n", table: "  ", wantCode: errors.CodeInvalidInput},
		{name: "unknown mode", file: "a.csv", body: "a\n1\n", table: "t", opts: ingest.Options{Mode: "wide"}, wantCode: errors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := c.ImportFile(ctx, tt.file, strings.NewReader(tt.body), tt.table, tt.opts)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}

	tables, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestPartitionOverrideNeedsSingleSheet(t *testing.T) {
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	_, err := c.ImportFile(context.Background(), "m.xlsx", bytes.NewReader(kotaWorkbook(t, 1)), "modal", ingest.Options{Partition: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

type failingStore struct {
	ports.TableStore
	failPartition string
}

func (s failingStore) Begin(ctx context.Context) (ports.TableTx, error) {
	tx, err := s.TableStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{TableTx: tx, failPartition: s.failPartition}, nil
}

type failingTx struct {
	ports.TableTx
	failPartition string
}

func (t failingTx) InsertMany(ctx context.Context, name string, rows []table.Row) (int, error) {
	if len(rows) > 0 && rows[0].Partition == t.failPartition {
		return 0, stderrors.New("disk full")
	}
	return t.TableTx.InsertMany(ctx, name, rows)
}

func TestFailedSheetRollsBackOnlyItself(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)

	seed := testkit.BuildXLSX(t,
		testkit.Sheet("Kota A", testkit.Row("Nama"), testkit.Row("a-old")),
		testkit.Sheet("Kota B", testkit.Row("Nama"), testkit.Row("b-old")),
	)
	_, err := newCoordinator(t, store, nil).ImportFile(ctx, "seed.xlsx", bytes.NewReader(seed), "saham", ingest.Options{})
	require.NoError(t, err)

	c := newCoordinator(t, failingStore{TableStore: store, failPartition: "Kota B"}, nil)
	update := testkit.BuildXLSX(t,
		testkit.Sheet("Kota A", testkit.Row("Nama"), testkit.Row("a-new")),
		testkit.Sheet("Kota B", testkit.Row("Nama"), testkit.Row("b-new")),
	)
	report, err := c.ImportFile(ctx, "update.xlsx", bytes.NewReader(update), "saham", ingest.Options{})
	require.NoError(t, err)

	assert.Equal(t, table.StatusPartial, report.Status())
	assert.Equal(t, 1, report.RowsImported)
	assert.Contains(t, report.Sheets[1].Error, "disk full")

	assert.Equal(t, "a-new", partitionRows(t, store, "saham", "Kota A")[0].Values["nama"])
	assert.Equal(t, "b-old", partitionRows(t, store, "saham", "Kota B")[0].Values["nama"])
}

func TestImportRunsAreRecorded(t *testing.T) {
	ctx := context.Background()
	store := testkit.OpenStore(t)
	runs := new(MockRunRepository)
	runs.On("Create", mock.Anything, mock.MatchedBy(func(run *table.ImportRun) bool {
		return run.Table == "modal" && run.RowsImported == 3 && run.Sheets == 2 &&
			run.Status == table.StatusOK && len(run.Warnings) == 1
	})).Return(nil).Once()
	runs.On("ListByTable", mock.Anything, "modal", 50).Return([]*table.ImportRun{{ID: "r1"}}, nil).Once()

	c := newCoordinator(t, store, runs)
	_, err := c.ImportFile(ctx, "modal.xlsx", bytes.NewReader(kotaWorkbook(t, 3)), "Modal", ingest.Options{})
	require.NoError(t, err)

	list, err := c.ListImportRuns(ctx, "modal", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	runs.AssertExpectations(t)
}

func TestRunHistoryFailureDoesNotFailImport(t *testing.T) {
	store := testkit.OpenStore(t)
	runs := new(MockRunRepository)
	runs.On("Create", mock.Anything, mock.Anything).Return(stderrors.New("db down"))

	c := newCoordinator(t, store, runs)
	report, err := c.ImportFile(context.Background(), "modal.xlsx", bytes.NewReader(kotaWorkbook(t, 1)), "modal", ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.RowsImported)
}

func TestCancelledContextStopsBeforeCommit(t *testing.T) {
	store := testkit.OpenStore(t)
	c := newCoordinator(t, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ImportFile(ctx, "modal.xlsx", bytes.NewReader(kotaWorkbook(t, 1)), "modal", ingest.Options{})
	require.ErrorIs(t, err, context.Canceled)

	ok, err := store.TableExists(context.Background(), "modal")
	require.NoError(t, err)
	assert.False(t, ok)
}

var _ ports.TableStore = (*sqlstore.Store)(nil)
