package ingest

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"automl/domain/core"
	"automl/internal/testkit"
)

func writeCSV(t *testing.T, records [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(records))
	require.NoError(t, f.Close())
	return path
}

func TestReadCSVAppliesChurnMapping(t *testing.T) {
	cfg := testkit.DefaultChurnConfig()
	cfg.CustomerCount = 20
	records := testkit.NewChurnDataGenerator(cfg).GenerateRawRecords()

	frame, err := NewDataReader(writeCSV(t, records), nil, nil).ReadFrame(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, frame.NumRows())
	assert.ElementsMatch(t, testkit.ChurnColumns, frame.Columns())
	assert.False(t, frame.Has("surname"))
	assert.False(t, frame.Has("rownumber"))
}

func TestReadCSVLowercasesUnmappedColumns(t *testing.T) {
	path := writeCSV(t, [][]string{
		{"Exited", "Region", "Surname"},
		{"1", "North", "Smith"},
		{"0", "South", "Jones"},
	})
	frame, err := NewDataReader(path, nil, nil).ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"churn", "region"}, frame.Columns())

	col, ok := frame.Column("region")
	require.True(t, ok)
	assert.Equal(t, []string{"North", "South"}, col)
}

func TestReadCSVCustomMapping(t *testing.T) {
	path := writeCSV(t, [][]string{
		{"label", "x"},
		{"yes", "1"},
	})
	frame, err := NewDataReader(path, MergeMapping(map[string]string{"label": "churn"}), nil).
		ReadFrame(context.Background())
	require.NoError(t, err)
	assert.True(t, frame.Has("churn"))
}

func TestReadCSVDuplicateAfterMappingIsDataError(t *testing.T) {
	path := writeCSV(t, [][]string{
		{"Age", "age"},
		{"1", "2"},
	})
	_, err := NewDataReader(path, nil, nil).ReadFrame(context.Background())
	assert.True(t, core.IsDataError(err))
}

func TestMissingFileIsDataError(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.csv"), nil, nil).ReadFrame(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsDataError(err))
}

func TestReadExcelFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "churn.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"CustomerId", "Age", "Geography", "Exited"},
		{"15634602", 42, "France", 1},
		{"15647311", 41, "Spain", 0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	frame, err := NewDataReader(path, nil, nil).ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "age", "country", "churn"}, frame.Columns())
	assert.Equal(t, 2, frame.NumRows())

	age, _ := frame.Column("age")
	assert.Equal(t, []string{"42", "41"}, age)
}
