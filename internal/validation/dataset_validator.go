package validation

import (
	"fmt"

	"automl/domain/core"
	"automl/domain/dataset"
	"automl/internal"
)

// Severity of a validation finding
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one finding of ValidateDataset
type Issue struct {
	Severity Severity `json:"severity"`
	Check    string   `json:"check"`
	Column   string   `json:"column,omitempty"`
	Message  string   `json:"message"`
}

// Report collects the findings for one frame
type Report struct {
	Rows    int     `json:"rows"`
	Columns int     `json:"columns"`
	Issues  []Issue `json:"issues,omitempty"`
}

// Warnings returns the non-fatal findings.
func (r Report) Warnings() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			out = append(out, i)
		}
	}
	return out
}

// DatasetValidator checks a frame before any search starts.
type DatasetValidator struct {
	logger *internal.Logger
	// HighMissingRatio flags feature columns missing at least this share.
	HighMissingRatio float64
}

// NewDatasetValidator creates a validator logging through logger
func NewDatasetValidator(logger *internal.Logger) *DatasetValidator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DatasetValidator{logger: logger, HighMissingRatio: 0.5}
}

// ValidateDataset fails with a DataError when the frame is empty or has no
// target column. Missing labels, constant columns and mostly-empty columns
// are logged as warnings and returned in the report.
func (v *DatasetValidator) ValidateDataset(f *dataset.Frame, target string) (Report, error) {
	if f.Empty() {
		v.logger.Error("[Validation] dataset is empty")
		return Report{}, core.NewDataError("dataset is empty")
	}
	report := Report{Rows: f.NumRows(), Columns: f.NumColumns()}

	labels, ok := f.Column(target)
	if !ok {
		err := core.NewDataError("target column %q not found; available columns: %v", target, f.Columns())
		v.logger.Error("[Validation] %v", err)
		return report, err
	}

	if n := countMissing(labels); n > 0 {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityWarning,
			Check:    "target_missing",
			Column:   target,
			Message:  fmt.Sprintf("target column has %d missing values; those rows are dropped", n),
		})
	}

	for _, name := range f.Columns() {
		if name == target {
			continue
		}
		col, _ := f.Column(name)
		missing := countMissing(col)
		switch {
		case missing == len(col):
			report.Issues = append(report.Issues, Issue{SeverityWarning, "all_missing", name, "column has no values"})
		case float64(missing)/float64(len(col)) >= v.HighMissingRatio:
			report.Issues = append(report.Issues, Issue{SeverityWarning, "high_missing", name,
				fmt.Sprintf("%.0f%% of values are missing", 100*float64(missing)/float64(len(col)))})
		case distinct(col) == 1 && len(col) > 1:
			report.Issues = append(report.Issues, Issue{SeverityWarning, "constant", name, "column has a single value"})
		}
	}

	for _, issue := range report.Issues {
		v.logger.Warn("[Validation] %s: %s", describe(issue), issue.Message)
	}
	v.logger.Info("[Validation] dataset ok: %d rows, %d columns, %d warnings", report.Rows, report.Columns, len(report.Issues))
	return report, nil
}

func describe(i Issue) string {
	if i.Column == "" {
		return i.Check
	}
	return fmt.Sprintf("%s(%s)", i.Check, i.Column)
}

func countMissing(col []string) int {
	var n int
	for _, c := range col {
		if dataset.IsMissing(c) {
			n++
		}
	}
	return n
}

func distinct(col []string) int {
	seen := map[string]bool{}
	for _, c := range col {
		if !dataset.IsMissing(c) {
			seen[c] = true
		}
	}
	return len(seen)
}
