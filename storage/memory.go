package storage

import (
	"context"
	"sort"
	"sync"

	"feedhub/internal/domain"
)

// MemoryReadStore keeps counters in process memory. Counts are lost on restart.
type MemoryReadStore struct {
	mu    sync.Mutex
	total map[string]int64
	daily map[string]map[string]int64
}

func NewMemoryReadStore() *MemoryReadStore {
	return &MemoryReadStore{
		total: make(map[string]int64),
		daily: make(map[string]map[string]int64),
	}
}

func (m *MemoryReadStore) IncrementRead(_ context.Context, url, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total[url]++
	counts, ok := m.daily[day]
	if !ok {
		counts = make(map[string]int64)
		m.daily[day] = counts
	}
	counts[url]++
	return nil
}

func (m *MemoryReadStore) TopDaily(_ context.Context, day string, limit int) ([]domain.ReadCount, error) {
	m.mu.Lock()
	out := make([]domain.ReadCount, 0, len(m.daily[day]))
	for url, c := range m.daily[day] {
		out = append(out, domain.ReadCount{URL: url, Count: c})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].URL < out[j].URL
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryReadStore) TotalCount(_ context.Context, url string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total[url], nil
}

func (m *MemoryReadStore) Close() {}
