package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalTableDataColumns(t *testing.T) {
	lt := LogicalTable{
		Name:         "saham",
		Columns:      []string{"id", "source_sheet", "no", "nama", "created_at", "updated_at", "modal"},
		HasPartition: true,
	}
	assert.Equal(t, []string{"no", "nama", "modal"}, lt.DataColumns())
	assert.True(t, lt.HasColumn("nama"))
	assert.False(t, lt.HasColumn("alamat"))
}

func TestRowDisplayStripsEmpty(t *testing.T) {
	r := Row{ID: 3, Partition: "Kota A", Values: map[string]string{"nama": "Bank Riau", "modal": ""}}
	assert.Equal(t, map[string]string{"nama": "Bank Riau", "source_sheet": "Kota A"}, r.Display())
}

func TestReportStatus(t *testing.T) {
	tests := []struct {
		name   string
		sheets []SheetResult
		want   string
	}{
		{"all committed", []SheetResult{{Sheet: "A"}, {Sheet: "B", Skipped: true}}, StatusOK},
		{"one failed", []SheetResult{{Sheet: "A"}, {Sheet: "B", Error: "boom"}}, StatusPartial},
		{"all failed", []SheetResult{{Sheet: "A", Error: "boom"}, {Sheet: "B", Skipped: true}}, StatusFailed},
		{"nothing", nil, StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ImportReport{Sheets: tt.sheets}
			assert.Equal(t, tt.want, r.Status())
		})
	}
}

func TestLayoutWindowAndTitle(t *testing.T) {
	grid := [][]string{
		{},
		{},
		{},
		{"", "DAFTAR PERDA", "", "PENYERTAAN MODAL"},
		{"x", "TAHUN 2024", "", "", "", "", "", "", "", "", "ignored"},
		{"", "1", "Kab. Siak", "5/2019", "2019", "Tunai", "", "", "1000000", "-", "K"},
	}

	l, ok := LayoutByName("bylaws")
	assert.True(t, ok)
	assert.Equal(t, "DAFTAR PERDA | PENYERTAAN MODAL - TAHUN 2024", l.Title(grid))

	data := l.DataRows(grid)
	assert.Len(t, data, 1)
	assert.Equal(t, []string{"1", "Kab. Siak", "5/2019", "2019", "Tunai", "", "", "1000000", "-"}, data[0])
	assert.Len(t, l.HeaderCells(grid), 9)

	_, ok = LayoutByName("unknown")
	assert.False(t, ok)
}

func TestDefaultLayout(t *testing.T) {
	grid := [][]string{{"No", "Nama"}, {"1", "Andi"}, {"2"}}
	l, _ := LayoutByName("")
	assert.Equal(t, []string{"No", "Nama"}, l.HeaderCells(grid))
	assert.Equal(t, [][]string{{"1", "Andi"}, {"2"}}, l.DataRows(grid))
	assert.Equal(t, "", l.Title(grid))
}
