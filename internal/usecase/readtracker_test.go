package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedhub/internal/domain"
	"feedhub/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	*storage.MemoryReadStore
	mu   sync.Mutex
	days []string
	err  error
}

func (s *recordingStore) TopDaily(ctx context.Context, day string, limit int) ([]domain.ReadCount, error) {
	s.mu.Lock()
	s.days = append(s.days, day)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.MemoryReadStore.TopDaily(ctx, day, limit)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestTracker(store storage.ReadCounterStore, c *clock) *ReadTracker {
	return NewReadTracker(store, time.UTC, discardLogger(), WithReadClock(c.Now))
}

func TestReadTracker_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: testNow}
	tracker := newTestTracker(storage.NewMemoryReadStore(), c)

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.RecordRead(ctx, "http://x"))
	}

	top, err := tracker.TopRead(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReadCount{{URL: "http://x", Count: 3}}, top)
}

func TestReadTracker_EmptyURLIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryReadStore()
	tracker := newTestTracker(store, &clock{now: testNow})

	require.NoError(t, tracker.RecordRead(ctx, ""))
	require.NoError(t, tracker.RecordRead(ctx, "   "))

	top, err := tracker.TopRead(ctx, 7, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestReadTracker_SumsAcrossDays(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: testNow.AddDate(0, 0, -2)}
	tracker := newTestTracker(storage.NewMemoryReadStore(), c)

	require.NoError(t, tracker.RecordRead(ctx, "https://a.example.com"))
	require.NoError(t, tracker.RecordRead(ctx, "https://b.example.com"))
	c.Set(testNow)
	require.NoError(t, tracker.RecordRead(ctx, "https://b.example.com"))
	require.NoError(t, tracker.RecordRead(ctx, "https://c.example.com"))
	c.Set(testNow.AddDate(0, 0, -10))
	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.RecordRead(ctx, "https://old.example.com"))
	}
	c.Set(testNow)

	top, err := tracker.TopRead(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReadCount{
		{URL: "https://b.example.com", Count: 2},
		{URL: "https://c.example.com", Count: 1},
		{URL: "https://a.example.com", Count: 1},
	}, top)

	top, err = tracker.TopRead(ctx, 11, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReadCount{{URL: "https://old.example.com", Count: 5}}, top)
}

func TestReadTracker_Clamping(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{MemoryReadStore: storage.NewMemoryReadStore()}
	tracker := newTestTracker(store, &clock{now: testNow})

	for i := 0; i < MaxTopN+10; i++ {
		require.NoError(t, tracker.RecordRead(ctx, "https://example.com/"+string(rune('a'+i))))
	}

	top, err := tracker.TopRead(ctx, 1000, 1000)
	require.NoError(t, err)
	assert.Len(t, top, MaxTopN)
	assert.Len(t, store.days, MaxRecentDays)
	assert.Equal(t, "2024-06-15", store.days[0])

	store.days = nil
	top, err = tracker.TopRead(ctx, 0, -5)
	require.NoError(t, err)
	assert.Len(t, top, 1)
	assert.Equal(t, []string{"2024-06-15"}, store.days)
}

func TestReadTracker_DayUsesLocation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryReadStore()
	seoul := time.FixedZone("KST", 9*60*60)
	// 20:00 UTC is already the next day in Seoul.
	tracker := NewReadTracker(store, seoul, discardLogger(), WithReadClock(func() time.Time {
		return time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)
	}))

	require.NoError(t, tracker.RecordRead(ctx, "https://a.example.com"))

	counts, err := store.TopDaily(ctx, "2024-06-16", 10)
	require.NoError(t, err)
	assert.Len(t, counts, 1)
}

func TestReadTracker_StoreError(t *testing.T) {
	boom := errors.New("boom")
	store := &recordingStore{MemoryReadStore: storage.NewMemoryReadStore(), err: boom}
	tracker := newTestTracker(store, &clock{now: testNow})

	_, err := tracker.TopRead(context.Background(), 3, 3)
	assert.ErrorIs(t, err, boom)
}

func TestReadTracker_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(storage.NewMemoryReadStore(), &clock{now: testNow})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tracker.RecordRead(ctx, "https://hot.example.com"))
		}()
	}
	wg.Wait()

	top, err := tracker.TopRead(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReadCount{{URL: "https://hot.example.com", Count: 100}}, top)
}
