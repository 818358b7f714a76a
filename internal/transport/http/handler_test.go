package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"feedhub/internal/adapter/analytics"
	"feedhub/internal/domain"
	"feedhub/internal/usecase"
	"feedhub/storage"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeAggregator struct {
	mu     sync.Mutex
	groups []string
}

func (f *fakeAggregator) Aggregate(ctx context.Context, group string, now time.Time) (*domain.AggregateFeed, error) {
	f.mu.Lock()
	f.groups = append(f.groups, group)
	f.mu.Unlock()
	switch group {
	case "dev", "all":
	case "panic":
		panic("aggregator exploded")
	case "broken":
		return nil, fmt.Errorf("boom")
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGroup, group)
	}
	return &domain.AggregateFeed{
		Group:     group,
		Title:     "Title of " + group,
		UpdatedAt: now,
		Entries: []domain.AggregateEntry{
			{Link: "https://a.example.com/1", Title: "One", UpdatedAt: now, SummaryHTML: "<p>one</p>", Author: "Alice"},
		},
	}, nil
}

type recordingReporter struct {
	mu   sync.Mutex
	hits []analytics.Hit
}

func (r *recordingReporter) Report(hit analytics.Hit) {
	r.mu.Lock()
	r.hits = append(r.hits, hit)
	r.mu.Unlock()
}

type testEnv struct {
	server   http.Handler
	agg      *fakeAggregator
	reporter *recordingReporter
	tracker  *usecase.ReadTracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		agg:      &fakeAggregator{},
		reporter: &recordingReporter{},
		tracker: usecase.NewReadTracker(storage.NewMemoryReadStore(), time.UTC, log,
			usecase.WithReadClock(func() time.Time { return fixedNow })),
	}
	h := NewHandler(log, env.agg, env.tracker, env.reporter, HandlerOptions{
		DefaultGroup: "dev",
		Now:          func() time.Time { return fixedNow },
	})
	env.server = NewServer(log, h)
	return env
}

func (e *testEnv) do(method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func TestGetFeed_DefaultGroupAtom(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/feeds", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/atom+xml")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, []string{"dev"}, env.agg.groups)

	parsed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "Title of dev", parsed.Title)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "https://a.example.com/1", parsed.Items[0].Link)
}

func TestGetFeed_FormatSelection(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		accept      string
		contentType string
		group       string
	}{
		{"query json", "/feeds/dev?format=json", "", "application/feed+json", "dev"},
		{"suffix json", "/feeds/all.json", "", "application/feed+json", "all"},
		{"suffix xml", "/feeds/dev.xml", "", "application/atom+xml", "dev"},
		{"suffix rss", "/feeds/dev.rss", "", "application/rss+xml", "dev"},
		{"accept json", "/feeds/dev", "application/json", "application/feed+json", "dev"},
		{"query beats accept", "/feeds/dev?format=atom", "application/json", "application/atom+xml", "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodGet, tt.target, map[string]string{"Accept": tt.accept})

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.Equal(t, []string{tt.group}, env.agg.groups)
		})
	}
}

func TestGetFeed_JSONBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/feeds/dev.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Title string `json:"title"`
		Items []struct {
			URL string `json:"url"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Title of dev", doc.Title)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "https://a.example.com/1", doc.Items[0].URL)
}

func TestGetFeed_UnknownGroup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/feeds/gardening", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), "gardening")
	assert.Empty(t, env.reporter.hits)
}

func TestGetFeed_BadFormat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/feeds/dev?format=yaml", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.agg.groups)
}

func TestGetFeed_InternalError(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusInternalServerError, env.do(http.MethodGet, "/feeds/broken", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, env.do(http.MethodGet, "/feeds/panic", nil).Code)
}

func TestGetFeed_ReportsAnalytics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/feeds/dev", map[string]string{
		DeviceHeader: "device-42",
		"User-Agent": "Reader/2.0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.reporter.hits, 1)
	hit := env.reporter.hits[0]
	assert.Equal(t, "device-42", hit.ClientID)
	assert.Equal(t, "dev", hit.Title)
	assert.Equal(t, "Reader/2.0", hit.UserAgent)
	assert.Equal(t, "http://example.com/feeds/dev", hit.DocumentURL)
}

func TestRecordRead(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodGet, "/read?url=http://x", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":0}`, rec.Body.String())
	}
	rec := env.do(http.MethodPost, "/read?url=http://x", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":0}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/top?recent_days=1&n=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"http://x":4}`, rec.Body.String())
}

func TestRecordRead_PostForm(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/read", strings.NewReader("url=https%3A%2F%2Fa.example.com%2F1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	top, err := env.tracker.TopRead(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReadCount{{URL: "https://a.example.com/1", Count: 1}}, top)
}

func TestTopReads_OrderedObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for url, n := range map[string]int{"https://b.example.com": 1, "https://a.example.com": 3, "https://c.example.com": 2} {
		for i := 0; i < n; i++ {
			require.NoError(t, env.tracker.RecordRead(ctx, url))
		}
	}

	rec := env.do(http.MethodGet, "/top", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"https://a.example.com":3,"https://c.example.com":2,"https://b.example.com":1}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/top?n=1", nil)
	assert.Equal(t, `{"https://a.example.com":3}`, rec.Body.String())
}

func TestTopReads_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/top?recent_days=1000&n=1000", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{}`, rec.Body.String())
}

func TestTopReads_BadParams(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/top?recent_days=week", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/top?n=1.5", nil).Code)
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodOptions, "/feeds/dev", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.agg.groups)
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", map[string]string{requestIDHeader: "req-123"})

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}
