package dataset

import (
	"math"
	"sort"
	"strconv"

	"automl/domain/core"
)

// Dataset is the training input of a tuning run: features with a
// column-role partition and an integer-encoded label vector.
type Dataset struct {
	Target   string
	Features *Frame
	Labels   []int
	Classes  []string
	Roles    Roles
	// DroppedRows counts rows removed because their label was missing.
	DroppedRows int
}

// Options control how a frame becomes a Dataset.
type Options struct {
	Target      string
	DropColumns []string
}

// New splits the target out of frame, drops identifier columns, removes
// rows with a missing label and infers column roles.
func New(f *Frame, opts Options) (*Dataset, error) {
	if f.Empty() {
		return nil, core.NewDataError("dataset is empty")
	}
	labelsRaw, ok := f.Column(opts.Target)
	if !ok {
		return nil, core.NewDataError("target column %q not found; available columns: %v", opts.Target, f.Columns())
	}

	keep := make([]int, 0, len(labelsRaw))
	for i, v := range labelsRaw {
		if !IsMissing(v) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, core.NewDataError("target column %q has no non-missing values", opts.Target)
	}

	features := f.Drop(append([]string{opts.Target}, opts.DropColumns...)...)
	if features.NumColumns() == 0 {
		return nil, core.NewDataError("no feature columns left after dropping target and identifiers")
	}
	if len(keep) < f.NumRows() {
		features = features.SelectRows(keep)
	}

	raw := make([]string, len(keep))
	for i, r := range keep {
		raw[i] = canonicalLabel(labelsRaw[r])
	}
	classes := sortedClasses(raw)
	if len(classes) < 2 {
		return nil, core.NewDataError("target column %q has a single class %q", opts.Target, classes[0])
	}
	code := make(map[string]int, len(classes))
	for i, c := range classes {
		code[c] = i
	}
	labels := make([]int, len(raw))
	for i, v := range raw {
		labels[i] = code[v]
	}

	return &Dataset{
		Target:      opts.Target,
		Features:    features,
		Labels:      labels,
		Classes:     classes,
		Roles:       InferRoles(features),
		DroppedRows: f.NumRows() - len(keep),
	}, nil
}

// NumRows returns the number of labelled rows.
func (d *Dataset) NumRows() int { return len(d.Labels) }

// NumClasses returns the number of distinct labels.
func (d *Dataset) NumClasses() int { return len(d.Classes) }

// Subset returns the rows at the given positions, sharing Classes and Roles.
func (d *Dataset) Subset(rows []int) *Dataset {
	labels := make([]int, len(rows))
	for i, r := range rows {
		labels[i] = d.Labels[r]
	}
	return &Dataset{
		Target:   d.Target,
		Features: d.Features.SelectRows(rows),
		Labels:   labels,
		Classes:  d.Classes,
		Roles:    d.Roles,
	}
}

// canonicalLabel maps "1", "1.0" and " 1 " onto the same class.
func canonicalLabel(v string) string {
	if f, ok := ParseNumber(v); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return v
}

// sortedClasses orders classes numerically when every label is numeric,
// lexically otherwise.
func sortedClasses(labels []string) []string {
	seen := map[string]bool{}
	var classes []string
	numeric := true
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		classes = append(classes, l)
		if _, ok := ParseNumber(l); !ok {
			numeric = false
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if numeric {
			a, _ := ParseNumber(classes[i])
			b, _ := ParseNumber(classes[j])
			return a < b
		}
		return classes[i] < classes[j]
	})
	return classes
}
