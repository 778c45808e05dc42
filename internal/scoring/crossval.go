package scoring

import (
	"context"
	"runtime"

	"automl/domain/dataset"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat"
)

// FoldScorer fits on train and returns a score on test. Each call must use
// its own model and pipeline instance.
type FoldScorer func(ctx context.Context, train, test *dataset.Dataset) (float64, error)

// CVOptions configure CrossValidate.
type CVOptions struct {
	Folds int
	Seed  int64
	// Parallelism bounds concurrently fitted folds; <= 0 uses GOMAXPROCS.
	Parallelism int
}

// CVResult carries per-fold scores and their summary.
type CVResult struct {
	FoldScores []float64
	Mean       float64
	StdDev     float64
}

// CrossValidate scores every stratified fold concurrently and waits for all
// of them before aggregating. The first fold error cancels the rest.
func CrossValidate(ctx context.Context, ds *dataset.Dataset, opts CVOptions, score FoldScorer) (CVResult, error) {
	folds, err := StratifiedKFold(ds.Labels, opts.Folds, opts.Seed)
	if err != nil {
		return CVResult{}, err
	}

	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(limit))
	scores := make([]float64, len(folds))

	g, gctx := errgroup.WithContext(ctx)
	for i, fold := range folds {
		i, fold := i, fold
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			s, err := score(gctx, ds.Subset(fold.Train), ds.Subset(fold.Test))
			if err != nil {
				return err
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CVResult{}, err
	}

	mean, std := stat.MeanStdDev(scores, nil)
	return CVResult{FoldScores: scores, Mean: mean, StdDev: std}, nil
}
