package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"feedhub/internal/domain"
	"feedhub/storage"
)

const (
	DefaultRecentDays = 7
	MaxRecentDays     = 100
	DefaultTopN       = 10
	MaxTopN           = 30
)

// ReadTracker counts article reads and ranks the most read articles.
type ReadTracker struct {
	store storage.ReadCounterStore
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger
}

// ReadTrackerOption customizes a ReadTracker.
type ReadTrackerOption func(*ReadTracker)

// WithReadClock overrides the clock used to pick the day bucket.
func WithReadClock(now func() time.Time) ReadTrackerOption {
	return func(t *ReadTracker) { t.now = now }
}

func NewReadTracker(store storage.ReadCounterStore, loc *time.Location, log *slog.Logger, opts ...ReadTrackerOption) *ReadTracker {
	if loc == nil {
		loc = time.Local
	}
	t := &ReadTracker{
		store: store,
		loc:   loc,
		now:   time.Now,
		log:   log.With(slog.String("component", "readtracker")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordRead counts one read of url. An empty url is ignored.
func (t *ReadTracker) RecordRead(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	day := t.now().In(t.loc).Format(storage.DayLayout)
	if err := t.store.IncrementRead(ctx, url, day); err != nil {
		t.log.Error("Failed to record read", slog.String("url", url), slog.Any("error", err))
		return fmt.Errorf("record read: %w", err)
	}
	return nil
}

// TopRead sums the daily counters of the last recentDays days, today
// included, and returns the n most read urls. Both arguments are clamped.
// Equal totals keep the order in which urls were first seen, walking from
// today backwards.
func (t *ReadTracker) TopRead(ctx context.Context, recentDays, n int) ([]domain.ReadCount, error) {
	recentDays = clamp(recentDays, 1, MaxRecentDays)
	n = clamp(n, 1, MaxTopN)

	today := t.now().In(t.loc)
	totals := make(map[string]int64)
	var order []string
	for d := 0; d < recentDays; d++ {
		day := today.AddDate(0, 0, -d).Format(storage.DayLayout)
		counts, err := t.store.TopDaily(ctx, day, n)
		if err != nil {
			return nil, fmt.Errorf("top reads of %s: %w", day, err)
		}
		for _, c := range counts {
			if _, seen := totals[c.URL]; !seen {
				order = append(order, c.URL)
			}
			totals[c.URL] += c.Count
		}
	}

	out := make([]domain.ReadCount, 0, len(order))
	for _, url := range order {
		out = append(out, domain.ReadCount{URL: url, Count: totals[url]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
