package simulation

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Job is one independent run of a sweep. Run must build all of its state itself; jobs never
// share ledgers, brokers or strategies.
type Job struct {
	Name string
	Run  func(ctx context.Context) (BacktestResult, error)
}

// Sweep runs jobs concurrently with at most parallelism in flight and returns the results in
// job order. The first failure cancels the remaining jobs.
func Sweep(ctx context.Context, jobs []Job, parallelism int) ([]BacktestResult, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]BacktestResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := job.Run(ctx)
			if err != nil {
				return fmt.Errorf("sweep job %s: %w", job.Name, err)
			}
			if result.Metadata == nil {
				result.Metadata = map[string]string{}
			}
			result.Metadata["job"] = job.Name
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
