package pipeline

import (
	"context"
	"fmt"

	"triadbalance/internal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Batch runs independent subjects concurrently, bounded by a weighted semaphore
type Batch struct {
	sem    *semaphore.Weighted
	limit  int
	logger *internal.Logger
}

// NewBatch creates a batch runner allowing maxSubjects concurrent subjects
func NewBatch(maxSubjects int, logger *internal.Logger) *Batch {
	if maxSubjects < 1 {
		maxSubjects = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Batch{
		sem:    semaphore.NewWeighted(int64(maxSubjects)),
		limit:  maxSubjects,
		logger: logger.WithComponent("Batch"),
	}
}

// Run executes every subject (and its surrogate replicas) and returns the
// reports in input order. The first failure cancels the remaining subjects.
func (b *Batch) Run(ctx context.Context, subjects []*Subject) ([]*Report, error) {
	b.logger.Info("running %d subjects, %d at a time", len(subjects), b.limit)

	reports := make([]*Report, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	for i, subj := range subjects {
		if err := b.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer b.sem.Release(1)
			report, err := subj.Execute(gctx)
			if err != nil {
				return fmt.Errorf("subject %s: %w", subj.ID, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.logger.Error("batch failed: %v", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}
