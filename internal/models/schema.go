package models

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"automl/domain/core"
	"automl/domain/search"
)

// Kind is the declared type of a model parameter.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindChoice
	KindBool
)

// ParamDef declares one constructor field. Min and Max bound numeric kinds
// inclusively unless the matching Open flag is set; infinities mean
// unbounded. A nil Default means "unset" and is passed through as nil.
type ParamDef struct {
	Name    string
	Kind    Kind
	Min     float64
	Max     float64
	MinOpen bool
	Choices []string
	Default any
}

// Schema is the full parameter surface of one architecture.
type Schema []ParamDef

// Params are validated, defaulted parameter values.
type Params map[string]any

func (p Params) Int(name string) int {
	v, _ := p[name].(int)
	return v
}

func (p Params) Float(name string) float64 {
	v, _ := p[name].(float64)
	return v
}

func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Resolve validates an assignment against the schema and fills defaults.
// Unknown keys, wrong types and out-of-range values are configuration
// errors. Integers are accepted for float parameters and integral floats
// for int parameters.
func (s Schema) Resolve(arch string, in search.Assignment) (Params, error) {
	defs := make(map[string]ParamDef, len(s))
	for _, d := range s {
		defs[d.Name] = d
	}

	var unknown []string
	for k := range in {
		if _, ok := defs[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, core.NewConfigurationError("%s: unknown parameters %s (accepted: %s)",
			arch, strings.Join(unknown, ", "), strings.Join(s.Names(), ", "))
	}

	out := make(Params, len(s))
	for _, d := range s {
		raw, ok := in[d.Name]
		if !ok {
			out[d.Name] = d.Default
			continue
		}
		v, err := d.coerce(raw)
		if err != nil {
			return nil, core.NewConfigurationError("%s: %v", arch, err)
		}
		out[d.Name] = v
	}
	return out, nil
}

// CheckSpace resolves every bound and choice of a search space, so unknown
// keys, out-of-range endpoints and wrong types fail before any trial runs.
// Numeric domains are intervals, which makes their endpoints sufficient.
func (s Schema) CheckSpace(arch string, space search.Space) error {
	kinds := make(map[string]Kind, len(s))
	for _, d := range s {
		kinds[d.Name] = d.Kind
	}
	for _, p := range space {
		var values []any
		switch p.Kind {
		case search.Continuous:
			if k, ok := kinds[p.Name]; ok && k == KindInt {
				return core.NewConfigurationError("%s: parameter %s takes integers, got the continuous range [%v, %v]",
					arch, p.Name, p.Low, p.High)
			}
			values = []any{p.Low, p.High}
		case search.Integer:
			values = []any{int(p.Low), int(p.High)}
		default:
			values = p.Choices
		}
		for _, v := range values {
			if _, err := s.Resolve(arch, search.Assignment{p.Name: v}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names lists parameter names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.Name
	}
	return names
}

func (d ParamDef) coerce(raw any) (any, error) {
	switch d.Kind {
	case KindFloat:
		var f float64
		switch x := raw.(type) {
		case float64:
			f = x
		case int:
			f = float64(x)
		default:
			return nil, fmt.Errorf("parameter %s wants a float, got %v (%T)", d.Name, raw, raw)
		}
		return f, d.checkRange(f)
	case KindInt:
		var i int
		switch x := raw.(type) {
		case int:
			i = x
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("parameter %s wants an integer, got %v", d.Name, x)
			}
			i = int(x)
		default:
			return nil, fmt.Errorf("parameter %s wants an integer, got %v (%T)", d.Name, raw, raw)
		}
		return i, d.checkRange(float64(i))
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("parameter %s wants true or false, got %v (%T)", d.Name, raw, raw)
		}
		return b, nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("parameter %s wants one of %v, got %v (%T)", d.Name, d.Choices, raw, raw)
	}
	for _, c := range d.Choices {
		if c == str {
			return str, nil
		}
	}
	return nil, fmt.Errorf("parameter %s wants one of %v, got %q", d.Name, d.Choices, str)
}

func (d ParamDef) checkRange(v float64) error {
	if v < d.Min || (d.MinOpen && v == d.Min) || v > d.Max {
		lo := "["
		if d.MinOpen {
			lo = "("
		}
		return fmt.Errorf("parameter %s=%v outside %s%v, %v]", d.Name, v, lo, d.Min, d.Max)
	}
	return nil
}
