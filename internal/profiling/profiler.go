package profiling

import (
	"sort"

	"automl/domain/dataset"
)

// ColumnProfile describes one feature column
type ColumnProfile struct {
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	Count        int            `json:"count"`
	Missing      int            `json:"missing"`
	MissingRatio float64        `json:"missing_ratio"`
	Distinct     int            `json:"distinct"`
	Summary      *Summary       `json:"summary,omitempty"`
	Shape        *Shape         `json:"shape,omitempty"`
	TopValues    map[string]int `json:"top_values,omitempty"`
}

// DataProfiler profiles the columns of a frame by role
type DataProfiler struct {
	// TopN bounds the category counts kept for categorical columns.
	TopN int
}

// NewDataProfiler creates a new data profiler
func NewDataProfiler() *DataProfiler {
	return &DataProfiler{TopN: 5}
}

// ProfileFrame profiles every column except the excluded ones, in column
// order. Roles are inferred the same way the pipeline infers them.
func (dp *DataProfiler) ProfileFrame(f *dataset.Frame, exclude ...string) []ColumnProfile {
	roles := dataset.InferRoles(f, exclude...)
	numeric := map[string]bool{}
	for _, n := range roles.Numeric {
		numeric[n] = true
	}
	skip := map[string]bool{}
	for _, n := range exclude {
		skip[n] = true
	}

	var out []ColumnProfile
	for _, name := range f.Columns() {
		if skip[name] {
			continue
		}
		col, _ := f.Column(name)
		if numeric[name] {
			out = append(out, dp.ProfileNumeric(name, col))
		} else {
			out = append(out, dp.ProfileCategorical(name, col))
		}
	}
	return out
}

// ProfileNumeric summarises a numeric column; missing cells are skipped
func (dp *DataProfiler) ProfileNumeric(name string, col []string) ColumnProfile {
	p := ColumnProfile{Name: name, Role: "numeric", Count: len(col)}
	values := make([]float64, 0, len(col))
	seen := map[float64]bool{}
	for _, cell := range col {
		v, ok := dataset.ParseNumber(cell)
		if !ok {
			p.Missing++
			continue
		}
		values = append(values, v)
		seen[v] = true
	}
	p.Distinct = len(seen)
	if len(col) > 0 {
		p.MissingRatio = float64(p.Missing) / float64(len(col))
	}
	if len(values) > 0 {
		if sum, shape, err := analyzeDistribution(values); err == nil {
			p.Summary, p.Shape = &sum, &shape
		}
	}
	return p
}

// ProfileCategorical counts categories and keeps the TopN most frequent
func (dp *DataProfiler) ProfileCategorical(name string, col []string) ColumnProfile {
	p := ColumnProfile{Name: name, Role: "categorical", Count: len(col)}
	counts := map[string]int{}
	for _, cell := range col {
		if dataset.IsMissing(cell) {
			p.Missing++
			continue
		}
		counts[cell]++
	}
	p.Distinct = len(counts)
	if len(col) > 0 {
		p.MissingRatio = float64(p.Missing) / float64(len(col))
	}

	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	if dp.TopN > 0 && len(cats) > dp.TopN {
		cats = cats[:dp.TopN]
	}
	if len(cats) > 0 {
		p.TopValues = make(map[string]int, len(cats))
		for _, c := range cats {
			p.TopValues[c] = counts[c]
		}
	}
	return p
}
