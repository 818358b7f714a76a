package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLimit is the number of tasks a Pool runs at once unless configured.
const DefaultLimit = 30

// Task processes the i-th unit of a batch. A returned error or a panic
// only marks that unit as failed.
type Task func(ctx context.Context, i int) error

// Stats summarizes one Run.
type Stats struct {
	Successful int
	Errors     int
	Skipped    int
	Total      int
	Duration   time.Duration
}

// Pool runs batches of independent tasks with bounded parallelism.
// Failures are isolated per task: errors and panics are counted and logged,
// siblings keep running.
type Pool struct {
	limit int
	log   *slog.Logger
}

// New creates a pool running at most limit tasks at once.
// A non-positive limit falls back to DefaultLimit.
func New(limit int, log *slog.Logger) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{
		limit: limit,
		log:   log.With(slog.String("component", "worker")),
	}
}

// Limit returns the concurrency cap of the pool.
func (p *Pool) Limit() int { return p.limit }

// Run executes task for i in [0, n) and waits for all started tasks.
// Once ctx is done no further tasks are started; those are counted as skipped.
func (p *Pool) Run(ctx context.Context, n int, task Task) Stats {
	start := time.Now()
	sem := semaphore.NewWeighted(int64(p.limit))
	var wg sync.WaitGroup
	var successCount, errorCount int64
	skipped := 0
	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			skipped = n - i
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			if err := p.runOne(ctx, i, task); err != nil {
				atomic.AddInt64(&errorCount, 1)
				p.log.Error("Task failed",
					slog.Int("task", i),
					slog.Any("error", err),
				)
				return
			}
			atomic.AddInt64(&successCount, 1)
		}(i)
	}
	wg.Wait()
	stats := Stats{
		Successful: int(successCount),
		Errors:     int(errorCount),
		Skipped:    skipped,
		Total:      n,
		Duration:   time.Since(start),
	}
	p.log.Debug("Batch completed",
		slog.Int("successful", stats.Successful),
		slog.Int("errors", stats.Errors),
		slog.Int("skipped", stats.Skipped),
		slog.Int("total", stats.Total),
		slog.Duration("duration", stats.Duration),
	)
	return stats
}

func (p *Pool) runOne(ctx context.Context, i int, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx, i)
}
