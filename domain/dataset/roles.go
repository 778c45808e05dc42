package dataset

import "sort"

// Roles partitions feature columns into numeric and categorical sets.
type Roles struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`
}

// All returns numeric columns followed by categorical ones.
func (r Roles) All() []string {
	out := make([]string, 0, len(r.Numeric)+len(r.Categorical))
	out = append(out, r.Numeric...)
	return append(out, r.Categorical...)
}

// InferRoles classifies every column not in exclude. A column is numeric
// when every non-missing cell parses as a number; an all-missing column is
// treated as numeric so the median imputer owns it.
func InferRoles(f *Frame, exclude ...string) Roles {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	var roles Roles
	for _, name := range f.columns {
		if skip[name] {
			continue
		}
		col, _ := f.Column(name)
		if isNumericColumn(col) {
			roles.Numeric = append(roles.Numeric, name)
		} else {
			roles.Categorical = append(roles.Categorical, name)
		}
	}
	sort.Strings(roles.Numeric)
	sort.Strings(roles.Categorical)
	return roles
}

func isNumericColumn(col []string) bool {
	for _, cell := range col {
		if IsMissing(cell) {
			continue
		}
		if _, ok := ParseNumber(cell); !ok {
			return false
		}
	}
	return true
}
