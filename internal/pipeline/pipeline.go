package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"automl/domain/core"
	"automl/domain/dataset"
	"automl/domain/search"
	"automl/internal/models"
)

// Pipeline chains a ColumnTransformer and a classifier into one fit/predict
// unit.
type Pipeline struct {
	Architecture string
	Params       search.Assignment
	Classes      []string
	Transformer  *ColumnTransformer
	Model        models.Classifier
}

// Build composes an un-fitted pipeline around model.
func Build(model models.Classifier, numeric, categorical []string) *Pipeline {
	return &Pipeline{
		Transformer: NewColumnTransformer(numeric, categorical),
		Model:       model,
	}
}

// Describe records the architecture and parameters the model was built
// from, which Load needs to reconstruct it.
func (p *Pipeline) Describe(arch string, params search.Assignment) *Pipeline {
	p.Architecture = arch
	p.Params = params.Clone()
	return p
}

// Fit fits the transformer on X, then the model on its output.
func (p *Pipeline) Fit(ctx context.Context, X *dataset.Frame, y []int, nClasses int) error {
	if err := p.Transformer.Fit(X); err != nil {
		return err
	}
	dense, err := p.Transformer.Transform(X)
	if err != nil {
		return err
	}
	return p.Model.Fit(ctx, dense, y, nClasses)
}

// FitDataset fits on a whole dataset and remembers its class names.
func (p *Pipeline) FitDataset(ctx context.Context, ds *dataset.Dataset) error {
	p.Classes = append([]string(nil), ds.Classes...)
	return p.Fit(ctx, ds.Features, ds.Labels, ds.NumClasses())
}

func (p *Pipeline) Predict(X *dataset.Frame) ([]int, error) {
	dense, err := p.Transformer.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(dense), nil
}

func (p *Pipeline) PredictProba(X *dataset.Frame) ([][]float64, error) {
	dense, err := p.Transformer.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Model.PredictProba(dense), nil
}

// PredictLabels maps predicted indices back onto class names.
func (p *Pipeline) PredictLabels(X *dataset.Frame) ([]string, error) {
	idx, err := p.Predict(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(idx))
	for i, c := range idx {
		if c < len(p.Classes) {
			out[i] = p.Classes[c]
		} else {
			out[i] = fmt.Sprint(c)
		}
	}
	return out, nil
}

type envelope struct {
	Architecture string             `json:"architecture"`
	Params       search.Assignment  `json:"params"`
	Classes      []string           `json:"classes"`
	Transformer  *ColumnTransformer `json:"transformer"`
	Model        json.RawMessage    `json:"model"`
}

// Marshal serialises a fitted pipeline.
func (p *Pipeline) Marshal() ([]byte, error) {
	if p.Architecture == "" {
		return nil, fmt.Errorf("pipeline has no architecture; call Describe before Marshal")
	}
	model, err := json.Marshal(p.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s model: %w", p.Architecture, err)
	}
	return json.Marshal(envelope{
		Architecture: p.Architecture,
		Params:       p.Params,
		Classes:      p.Classes,
		Transformer:  p.Transformer,
		Model:        model,
	})
}

// Load restores a pipeline written by Marshal.
func Load(data []byte, factory *models.Factory) (*Pipeline, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.NewDataError("corrupt pipeline artifact: %v", err)
	}
	if env.Transformer == nil || !env.Transformer.Fitted {
		return nil, core.NewDataError("pipeline artifact is not fitted")
	}
	model, err := factory.Create(env.Architecture, env.Params)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Model, model); err != nil {
		return nil, core.NewDataError("corrupt %s model state: %v", env.Architecture, err)
	}
	return &Pipeline{
		Architecture: env.Architecture,
		Params:       env.Params,
		Classes:      env.Classes,
		Transformer:  env.Transformer,
		Model:        model,
	}, nil
}
