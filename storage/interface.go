package storage

import (
	"context"

	"feedhub/internal/domain"
)

// DayLayout is the calendar-day key of the daily read counters.
const DayLayout = "2006-01-02"

// ReadCounterStore persists per-article read counters, one all-time total and
// one counter per calendar day.
type ReadCounterStore interface {
	// IncrementRead adds one read of url to its total and to the counter of day.
	IncrementRead(ctx context.Context, url, day string) error
	// TopDaily returns at most limit counters of day, highest count first
	// and ties by url ascending.
	TopDaily(ctx context.Context, day string, limit int) ([]domain.ReadCount, error)
	// TotalCount returns the all-time reads of url, zero when never read.
	TotalCount(ctx context.Context, url string) (int64, error)
	Close()
}
