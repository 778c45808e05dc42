package search

import (
	"fmt"
	"math"
	"sort"

	"automl/domain/core"
)

// ParamKind tags how a parameter is suggested.
type ParamKind int

const (
	Continuous ParamKind = iota
	Integer
	Categorical
)

func (k ParamKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Categorical:
		return "categorical"
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// ParamSpec is the typed search domain of one hyperparameter. Low and High
// are set for Continuous and Integer; Choices for Categorical.
type ParamSpec struct {
	Name    string
	Kind    ParamKind
	Low     float64
	High    float64
	Choices []any
}

// Fixed reports whether the parameter can only take one value.
func (p ParamSpec) Fixed() bool {
	if p.Kind == Categorical {
		return len(p.Choices) == 1
	}
	return p.Low == p.High
}

// Contains reports whether v lies in the declared domain.
func (p ParamSpec) Contains(v any) bool {
	switch p.Kind {
	case Continuous:
		f, ok := v.(float64)
		return ok && f >= p.Low && f <= p.High
	case Integer:
		i, ok := v.(int)
		return ok && float64(i) >= p.Low && float64(i) <= p.High
	}
	for _, c := range p.Choices {
		if c == v {
			return true
		}
	}
	return false
}

// Space is the ordered set of parameter specs of one architecture.
type Space []ParamSpec

// Names returns the parameter names in space order.
func (s Space) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Fixed reports whether every parameter has a single value.
func (s Space) Fixed() bool {
	for _, p := range s {
		if !p.Fixed() {
			return false
		}
	}
	return true
}

// Contains reports whether a sets every parameter inside its domain.
func (s Space) Contains(a Assignment) bool {
	for _, p := range s {
		v, ok := a[p.Name]
		if !ok || !p.Contains(v) {
			return false
		}
	}
	return true
}

// InferParamSpec derives a spec from a declared value list. Lists must be
// non-empty and homogeneous: all numeric, all string or all bool. A numeric
// list with any float is a continuous range, so [0.01, 1] spans the floats.
func InferParamSpec(name string, values []any) (ParamSpec, error) {
	if len(values) == 0 {
		return ParamSpec{}, core.NewConfigurationError("parameter %q has an empty value list", name)
	}

	kind, err := valueKind(name, values[0])
	if err != nil {
		return ParamSpec{}, err
	}
	for _, v := range values[1:] {
		k, err := valueKind(name, v)
		if err != nil {
			return ParamSpec{}, err
		}
		if k == kind {
			continue
		}
		if numeric(k) && numeric(kind) {
			kind = "float"
			continue
		}
		return ParamSpec{}, core.NewConfigurationError(
			"parameter %q mixes value types %s and %s in %v", name, kind, k, values)
	}

	spec := ParamSpec{Name: name}
	switch kind {
	case "float", "int":
		spec.Kind = Continuous
		if kind == "int" {
			spec.Kind = Integer
		}
		spec.Low, spec.High = math.Inf(1), math.Inf(-1)
		for _, v := range values {
			f := toFloat(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return ParamSpec{}, core.NewConfigurationError("parameter %q has non-finite value %v", name, v)
			}
			spec.Low = math.Min(spec.Low, f)
			spec.High = math.Max(spec.High, f)
		}
	default:
		spec.Kind = Categorical
		seen := map[any]bool{}
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				spec.Choices = append(spec.Choices, v)
			}
		}
	}
	return spec, nil
}

// NewSpace infers a spec per grid entry, ordered by parameter name.
func NewSpace(grid map[string][]any) (Space, error) {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	space := make(Space, 0, len(names))
	for _, name := range names {
		spec, err := InferParamSpec(name, grid[name])
		if err != nil {
			return nil, err
		}
		space = append(space, spec)
	}
	return space, nil
}

func valueKind(name string, v any) (string, error) {
	switch v.(type) {
	case float64, float32:
		return "float", nil
	case int, int64, int32, uint, uint64, uint32:
		return "int", nil
	case string:
		return "string", nil
	case bool:
		return "bool", nil
	}
	return "", core.NewConfigurationError("parameter %q has unsupported value %v (%T)", name, v, v)
}

func numeric(kind string) bool { return kind == "int" || kind == "float" }

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case uint32:
		return float64(x)
	}
	return math.NaN()
}
