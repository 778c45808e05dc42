package search

import (
	"automl/domain/search"
)

// Suggest turns a typed space into one assignment by dispatching every
// parameter to the matching TrialContext suggestion. Fixed parameters come
// back as their single value.
func Suggest(trial *TrialContext, space search.Space) (search.Assignment, error) {
	for _, p := range space {
		var err error
		switch p.Kind {
		case search.Continuous:
			_, err = trial.SuggestFloat(p.Name, p.Low, p.High)
		case search.Integer:
			_, err = trial.SuggestInt(p.Name, int(p.Low), int(p.High))
		default:
			_, err = trial.SuggestCategorical(p.Name, p.Choices)
		}
		if err != nil {
			return nil, err
		}
	}
	return trial.Params(), nil
}
