package ingest

import "strings"

// DropColumn is the mapping target that removes a column on ingest.
const DropColumn = "drop"

// DefaultColumnMapping normalises the bank churn export onto the API schema.
var DefaultColumnMapping = map[string]string{
	"CreditScore":     "credit_score",
	"Geography":       "country",
	"Gender":          "gender",
	"Age":             "age",
	"Tenure":          "tenure",
	"Balance":         "account_balance",
	"NumOfProducts":   "num_products",
	"HasCrCard":       "has_credit_card",
	"IsActiveMember":  "is_active_member",
	"EstimatedSalary": "salary",
	"Exited":          "churn",
	"RowNumber":       DropColumn,
	"CustomerId":      "customer_id",
	"Surname":         DropColumn,
}

// MergeMapping overlays user entries on the defaults.
func MergeMapping(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(DefaultColumnMapping)+len(overrides))
	for k, v := range DefaultColumnMapping {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// normalise resolves the final name of a raw header cell. An empty result
// means the column is dropped.
func normalise(header string, mapping map[string]string) string {
	name := strings.TrimSpace(header)
	if m, ok := mapping[name]; ok {
		name = m
	}
	if name == DropColumn {
		return ""
	}
	return strings.ToLower(name)
}
