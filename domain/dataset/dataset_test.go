package dataset

import (
	"testing"

	"automl/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func churnFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(
		[]string{"customer_id", "age", "country", "balance", "churn"},
		[][]string{
			{"c1", "42", "France", "0", "1"},
			{"c2", "35", "Spain", "", "0"},
			{"c3", "51", "", "120.5", "1.0"},
			{"c4", "29", "Germany", "88", ""},
			{"c5", "NA", "France", "10", "0"},
		},
	)
	require.NoError(t, err)
	return f
}

func TestNewFrameRejectsDuplicates(t *testing.T) {
	_, err := NewFrame([]string{"a", "a"}, nil)
	assert.True(t, core.IsDataError(err))
}

func TestFrameRenameAndDrop(t *testing.T) {
	f, err := NewFrame([]string{"RowNumber", "Exited", "Age"}, [][]string{{"1", "0", "30"}})
	require.NoError(t, err)

	renamed, err := f.Rename(map[string]string{"RowNumber": "drop", "Exited": "churn", "Age": "age"})
	require.NoError(t, err)
	assert.Equal(t, []string{"churn", "age"}, renamed.Columns())

	_, err = f.Rename(map[string]string{"Exited": "age", "Age": "age"})
	assert.True(t, core.IsDataError(err))

	assert.Equal(t, []string{"Age"}, f.Drop("RowNumber", "Exited", "unknown").Columns())
}

func TestInferRoles(t *testing.T) {
	roles := InferRoles(churnFrame(t), "churn", "customer_id")
	assert.Equal(t, []string{"age", "balance"}, roles.Numeric)
	assert.Equal(t, []string{"country"}, roles.Categorical)
	assert.Equal(t, []string{"age", "balance", "country"}, roles.All())
}

func TestNewDataset(t *testing.T) {
	ds, err := New(churnFrame(t), Options{Target: "churn", DropColumns: []string{"customer_id"}})
	require.NoError(t, err)

	assert.Equal(t, 4, ds.NumRows())
	assert.Equal(t, 1, ds.DroppedRows)
	assert.Equal(t, []string{"0", "1"}, ds.Classes)
	assert.Equal(t, []int{1, 0, 1, 0}, ds.Labels)
	assert.False(t, ds.Features.Has("churn"))
	assert.False(t, ds.Features.Has("customer_id"))
	assert.Equal(t, 4, ds.Features.NumRows())

	sub := ds.Subset([]int{2, 0})
	assert.Equal(t, []int{1, 1}, sub.Labels)
	age, _ := sub.Features.Column("age")
	assert.Equal(t, []string{"51", "42"}, age)
}

func TestNewDatasetErrors(t *testing.T) {
	empty, err := NewFrame([]string{"churn"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame *Frame
		opts  Options
	}{
		{"empty", empty, Options{Target: "churn"}},
		{"missing target", churnFrame(t), Options{Target: "exited"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.frame, tt.opts)
			assert.True(t, core.IsDataError(err))
		})
	}
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", " ", "NA", "nan", "NULL", "None"} {
		assert.True(t, IsMissing(v), v)
	}
	assert.False(t, IsMissing("0"))
	assert.False(t, IsMissing("gini"))
}

func TestNonFiniteCellsAreMissing(t *testing.T) {
	for _, v := range []string{"inf", "-Inf", "+Infinity", "1e999", "-1e999"} {
		assert.True(t, IsMissing(v), v)
		_, ok := ParseNumber(v)
		assert.False(t, ok, v)
	}

	v, ok := ParseNumber("1e-400")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	frame, err := NewFrame([]string{"balance", "churn"}, [][]string{{"10", "0"}, {"inf", "1"}, {"30", "0"}, {"-Infinity", "1"}})
	require.NoError(t, err)
	roles := InferRoles(frame, "churn")
	assert.Equal(t, []string{"balance"}, roles.Numeric)
}
