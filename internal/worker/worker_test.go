package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestPool(limit int) *Pool {
	return New(limit, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPool_RespectsLimit(t *testing.T) {
	p := newTestPool(3)
	var inFlight, peak int64

	stats := p.Run(context.Background(), 20, func(ctx context.Context, i int) error {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			cur := atomic.LoadInt64(&peak)
			if n <= cur || atomic.CompareAndSwapInt64(&peak, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil
	})

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
	assert.Equal(t, 20, stats.Successful)
	assert.Equal(t, 20, stats.Total)
}

func TestPool_IsolatesErrorsAndPanics(t *testing.T) {
	p := newTestPool(4)
	var ran int64

	stats := p.Run(context.Background(), 6, func(ctx context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		switch i {
		case 1:
			return errors.New("source down")
		case 3:
			panic("unexpected")
		}
		return nil
	})

	assert.Equal(t, int64(6), atomic.LoadInt64(&ran))
	assert.Equal(t, 4, stats.Successful)
	assert.Equal(t, 2, stats.Errors)
}

func TestPool_StopsStartingOnCancel(t *testing.T) {
	p := newTestPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	var ran int64

	stats := p.Run(ctx, 10, func(ctx context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		cancel()
		return nil
	})

	assert.Less(t, atomic.LoadInt64(&ran), int64(10))
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, int(10-atomic.LoadInt64(&ran)), stats.Skipped)
}

func TestPool_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, newTestPool(0).Limit())
}
