package pipeline

import (
	"sort"

	"automl/domain/core"
	"automl/domain/dataset"

	"github.com/montanaflynn/stats"
)

// MissingCategory replaces missing categorical cells before encoding.
const MissingCategory = "missing"

// NumericStage imputes numeric columns by median, then standardises them.
type NumericStage struct {
	Columns []string  `json:"columns"`
	Medians []float64 `json:"medians"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// CategoricalStage imputes a constant and expands categories into
// indicator columns. Categories unseen during Fit encode as all zeros.
type CategoricalStage struct {
	Columns    []string   `json:"columns"`
	Categories [][]string `json:"categories"`
}

// ColumnTransformer routes columns by role. Columns outside both role
// lists never reach the model.
type ColumnTransformer struct {
	Numeric     NumericStage     `json:"numeric"`
	Categorical CategoricalStage `json:"categorical"`
	Fitted      bool             `json:"fitted"`
}

// NewColumnTransformer returns an un-fitted transformer for the given roles.
func NewColumnTransformer(numeric, categorical []string) *ColumnTransformer {
	return &ColumnTransformer{
		Numeric:     NumericStage{Columns: append([]string(nil), numeric...)},
		Categorical: CategoricalStage{Columns: append([]string(nil), categorical...)},
	}
}

// Width is the number of output features after Fit.
func (t *ColumnTransformer) Width() int {
	w := len(t.Numeric.Columns)
	for _, c := range t.Categorical.Categories {
		w += len(c)
	}
	return w
}

// Fit learns imputation values, scaling and category vocabularies.
func (t *ColumnTransformer) Fit(f *dataset.Frame) error {
	n := len(t.Numeric.Columns)
	t.Numeric.Medians = make([]float64, n)
	t.Numeric.Means = make([]float64, n)
	t.Numeric.Scales = make([]float64, n)
	for i, name := range t.Numeric.Columns {
		raw, ok := f.Column(name)
		if !ok {
			return core.NewDataError("numeric column %q missing from input", name)
		}
		observed := make([]float64, 0, len(raw))
		for _, cell := range raw {
			if v, ok := dataset.ParseNumber(cell); ok {
				observed = append(observed, v)
			} else if !dataset.IsMissing(cell) {
				return core.NewDataError("column %q: %q is not numeric", name, cell)
			}
		}

		median := 0.0
		if len(observed) > 0 {
			median, _ = stats.Median(observed)
		}
		imputed := make([]float64, len(raw))
		for j, cell := range raw {
			if v, ok := dataset.ParseNumber(cell); ok {
				imputed[j] = v
			} else {
				imputed[j] = median
			}
		}
		mean, _ := stats.Mean(imputed)
		std, _ := stats.StandardDeviationPopulation(imputed)
		if std == 0 {
			std = 1
		}
		t.Numeric.Medians[i] = median
		t.Numeric.Means[i] = mean
		t.Numeric.Scales[i] = std
	}

	t.Categorical.Categories = make([][]string, len(t.Categorical.Columns))
	for i, name := range t.Categorical.Columns {
		raw, ok := f.Column(name)
		if !ok {
			return core.NewDataError("categorical column %q missing from input", name)
		}
		seen := map[string]bool{}
		for _, cell := range raw {
			seen[categoryOf(cell)] = true
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		t.Categorical.Categories[i] = cats
	}
	t.Fitted = true
	return nil
}

// Transform produces the dense model matrix, numeric block first.
func (t *ColumnTransformer) Transform(f *dataset.Frame) ([][]float64, error) {
	if !t.Fitted {
		return nil, core.NewDataError("transformer used before fit")
	}
	rows := f.NumRows()
	width := t.Width()
	X := make([][]float64, rows)
	for r := range X {
		X[r] = make([]float64, width)
	}

	for i, name := range t.Numeric.Columns {
		raw, ok := f.Column(name)
		if !ok {
			return nil, core.NewDataError("numeric column %q missing from input", name)
		}
		for r, cell := range raw {
			v, ok := dataset.ParseNumber(cell)
			if !ok {
				if !dataset.IsMissing(cell) {
					return nil, core.NewDataError("column %q: %q is not numeric", name, cell)
				}
				v = t.Numeric.Medians[i]
			}
			X[r][i] = (v - t.Numeric.Means[i]) / t.Numeric.Scales[i]
		}
	}

	offset := len(t.Numeric.Columns)
	for i, name := range t.Categorical.Columns {
		raw, ok := f.Column(name)
		if !ok {
			return nil, core.NewDataError("categorical column %q missing from input", name)
		}
		cats := t.Categorical.Categories[i]
		for r, cell := range raw {
			if j := sort.SearchStrings(cats, categoryOf(cell)); j < len(cats) && cats[j] == categoryOf(cell) {
				X[r][offset+j] = 1
			}
		}
		offset += len(cats)
	}
	return X, nil
}

// FeatureNames lists output columns, one-hot columns as name=category.
func (t *ColumnTransformer) FeatureNames() []string {
	names := append([]string(nil), t.Numeric.Columns...)
	for i, name := range t.Categorical.Columns {
		for _, c := range t.Categorical.Categories[i] {
			names = append(names, name+"="+c)
		}
	}
	return names
}

func categoryOf(cell string) string {
	if dataset.IsMissing(cell) {
		return MissingCategory
	}
	return cell
}
