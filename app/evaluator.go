package app

import (
	"context"
	"fmt"

	"automl/domain/core"
	"automl/domain/dataset"
	"automl/domain/search"
	"automl/internal/models"
	"automl/internal/pipeline"
	"automl/internal/scoring"
)

// Evaluator scores one parameter assignment of one architecture by
// cross-validated macro-F1. Every fold fits its own fresh pipeline, and
// nothing fitted here outlives the call.
type Evaluator struct {
	factory *models.Factory
	arch    string
	data    *dataset.Dataset
	cv      scoring.CVOptions
}

// NewEvaluator creates an evaluator bound to one architecture and dataset
func NewEvaluator(factory *models.Factory, arch string, data *dataset.Dataset, cv scoring.CVOptions) *Evaluator {
	return &Evaluator{factory: factory, arch: arch, data: data, cv: cv}
}

// Evaluate returns the mean macro-F1 across folds.
func (e *Evaluator) Evaluate(ctx context.Context, params search.Assignment) (float64, error) {
	res, err := e.CrossValidate(ctx, params)
	if err != nil {
		return 0, err
	}
	return res.Mean, nil
}

// CrossValidate returns per-fold scores as well as the mean.
func (e *Evaluator) CrossValidate(ctx context.Context, params search.Assignment) (scoring.CVResult, error) {
	nClasses := e.data.NumClasses()
	res, err := scoring.CrossValidate(ctx, e.data, e.cv, func(ctx context.Context, train, test *dataset.Dataset) (float64, error) {
		model, err := e.factory.Create(e.arch, params)
		if err != nil {
			return 0, err
		}
		p := pipeline.Build(model, e.data.Roles.Numeric, e.data.Roles.Categorical)
		if err := p.Fit(ctx, train.Features, train.Labels, nClasses); err != nil {
			return 0, err
		}
		pred, err := p.Predict(test.Features)
		if err != nil {
			return 0, err
		}
		return scoring.MacroF1(test.Labels, pred, nClasses), nil
	})
	if err != nil {
		return scoring.CVResult{}, fmt.Errorf("%w: %s: %w", core.ErrTrialEvaluation, e.arch, err)
	}
	return res, nil
}
