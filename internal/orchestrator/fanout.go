package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// TaskResult captures one fan-out task outcome. Batches aggregate results
// after all tasks complete instead of aborting on the first failure, so a
// partial batch is fully observable.
type TaskResult struct {
	ID       string
	Err      error
	Duration time.Duration
}

// fanOut runs one task per id with bounded concurrency. Tasks are
// independent by construction (non-overlapping context slices in, distinct
// store paths out), so no ordering is guaranteed or needed within a batch.
func fanOut(ctx context.Context, limit int, ids []string, fn func(ctx context.Context, id string) error) []TaskResult {
	if limit <= 0 {
		limit = 4
	}
	results := make([]TaskResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			start := time.Now()
			err := fn(gctx, id)
			results[i] = TaskResult{ID: id, Err: err, Duration: time.Since(start)}
			// Always nil: failures are captured per task and judged by the
			// caller once the whole batch is in.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// batchErr summarizes a batch: nil when every task succeeded.
func batchErr(step string, results []TaskResult) error {
	var failed []string
	var first error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.ID)
			if first == nil {
				first = r.Err
			}
		}
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("%s: %d/%d tasks failed (%v): %w", step, len(failed), len(results), failed, first)
}
