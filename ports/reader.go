package ports

import (
	"context"

	"automl/domain/dataset"
)

// DataReader yields a rectangular frame with canonical column names.
type DataReader interface {
	ReadFrame(ctx context.Context) (*dataset.Frame, error)
}
