package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"feedhub/internal/cache"
	"feedhub/internal/canonical"
	"feedhub/internal/domain"
	"feedhub/internal/worker"
)

const (
	// DefaultFreshnessWindow is how far back entries are kept.
	DefaultFreshnessWindow = 15 * 24 * time.Hour
	// UntitledPlaceholder replaces a missing entry title.
	UntitledPlaceholder = "untitled"
)

// SourceCatalog resolves a group selector to its sources and title.
type SourceCatalog interface {
	Sources(selector string) ([]domain.SourceDescriptor, error)
	Title(category string) (string, error)
}

// FeedCache is the shared, single-flight cache in front of the loader.
type FeedCache interface {
	FetchOrLoad(ctx context.Context, key string, ttl time.Duration, loader cache.Loader) (*domain.RawFeed, error)
}

// SourceLoader fetches and parses one source.
type SourceLoader interface {
	Load(ctx context.Context, sourceURL string) (*domain.RawFeed, error)
}

// SummaryRewriter makes links inside an entry body absolute.
type SummaryRewriter interface {
	Rewrite(body, base string) string
}

// AggregatorOptions holds the tunables of an Aggregator.
type AggregatorOptions struct {
	FreshnessWindow time.Duration
	Location        *time.Location
	TTL             cache.TTLPolicy
	// SortEntries orders the output by UpdatedAt, newest first. When false
	// entries keep source completion order.
	SortEntries bool
	Author      string
	Description string
}

// Aggregator merges the sources of a group into one feed.
type Aggregator struct {
	catalog  SourceCatalog
	cache    FeedCache
	loader   SourceLoader
	rewriter SummaryRewriter
	pool     *worker.Pool
	opts     AggregatorOptions
	log      *slog.Logger
}

func NewAggregator(
	catalog SourceCatalog,
	feedCache FeedCache,
	loader SourceLoader,
	rewriter SummaryRewriter,
	pool *worker.Pool,
	opts AggregatorOptions,
	log *slog.Logger,
) *Aggregator {
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = DefaultFreshnessWindow
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TTL == nil {
		opts.TTL = cache.FixedTTL(cache.DevelopmentTTL)
	}
	return &Aggregator{
		catalog:  catalog,
		cache:    feedCache,
		loader:   loader,
		rewriter: rewriter,
		pool:     pool,
		opts:     opts,
		log:      log.With(slog.String("component", "aggregator")),
	}
}

// Aggregate fetches every source of group and merges their fresh entries.
// Only an unknown group or a cancelled ctx fail the call; a failing source
// is logged and contributes nothing.
func (a *Aggregator) Aggregate(ctx context.Context, group string, now time.Time) (*domain.AggregateFeed, error) {
	sources, err := a.catalog.Sources(group)
	if err != nil {
		return nil, err
	}
	title, err := a.catalog.Title(group)
	if err != nil {
		return nil, err
	}
	log := a.log.With(slog.String("group", group))
	log.Info("Aggregation started", slog.Int("sources", len(sources)))

	var mu sync.Mutex
	entries := make([]domain.AggregateEntry, 0)
	stats := a.pool.Run(ctx, len(sources), func(ctx context.Context, i int) error {
		collected, err := a.collect(ctx, sources[i], now)
		if err != nil {
			return fmt.Errorf("source %s skipped: %w", sources[i].FeedURL, err)
		}
		mu.Lock()
		entries = append(entries, collected...)
		mu.Unlock()
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.opts.SortEntries {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		})
	}
	updatedAt := now.In(a.opts.Location)
	if len(entries) > 0 {
		updatedAt = entries[0].UpdatedAt
		for _, e := range entries[1:] {
			if e.UpdatedAt.After(updatedAt) {
				updatedAt = e.UpdatedAt
			}
		}
	}

	log.Info("Aggregation completed",
		slog.Int("entries", len(entries)),
		slog.Int("successful", stats.Successful),
		slog.Int("errors", stats.Errors),
		slog.Duration("duration", stats.Duration),
	)
	return &domain.AggregateFeed{
		Group:       group,
		Title:       title,
		Author:      a.opts.Author,
		Description: a.opts.Description,
		UpdatedAt:   updatedAt,
		Entries:     entries,
	}, nil
}

// collect returns the transformed fresh entries of one source, in parser order.
func (a *Aggregator) collect(ctx context.Context, src domain.SourceDescriptor, now time.Time) ([]domain.AggregateEntry, error) {
	feed, err := a.cache.FetchOrLoad(ctx, src.FeedURL, a.opts.TTL(), func(ctx context.Context) (*domain.RawFeed, error) {
		return a.loader.Load(ctx, src.FeedURL)
	})
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, nil
	}
	cutoff := now.Add(-a.opts.FreshnessWindow)
	out := make([]domain.AggregateEntry, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if !IsFresh(e.PublishedAt, now, cutoff) {
			continue
		}
		if entry, ok := a.safeTransform(src, feed, e); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// IsFresh reports whether published lies in [cutoff, now].
// A zero time is never fresh.
func IsFresh(published, now, cutoff time.Time) bool {
	if published.IsZero() {
		return false
	}
	return !published.Before(cutoff) && !published.After(now)
}

func (a *Aggregator) safeTransform(src domain.SourceDescriptor, feed *domain.RawFeed, e domain.RawEntry) (entry domain.AggregateEntry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Entry transform panicked, entry skipped",
				slog.String("url", src.FeedURL),
				slog.String("entry_id", e.ID),
				slog.Any("error", r),
			)
			ok = false
		}
	}()
	return a.transform(src, feed, e), true
}

func (a *Aggregator) transform(src domain.SourceDescriptor, feed *domain.RawFeed, e domain.RawEntry) domain.AggregateEntry {
	link := a.entryLink(src, e)

	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = UntitledPlaceholder
	}
	summary := e.Content
	if strings.TrimSpace(summary) == "" {
		summary = e.Summary
	}
	summary = a.rewriter.Rewrite(summary, link)

	return domain.AggregateEntry{
		Link:        link,
		Title:       title,
		UpdatedAt:   e.PublishedAt.In(a.opts.Location),
		SummaryHTML: summary,
		Author:      firstNonEmpty(e.Author, src.AuthorName, feed.Title),
	}
}

// entryLink picks the entry URL, or its ID, and makes it absolute against
// the source feed URL. The raw value is kept when it cannot be resolved.
func (a *Aggregator) entryLink(src domain.SourceDescriptor, e domain.RawEntry) string {
	link := firstNonEmpty(e.URL, e.ID)
	if link == "" {
		a.log.Error("Entry has no link",
			slog.String("url", src.FeedURL),
			slog.String("entry_title", e.Title),
		)
		return ""
	}
	if !strings.HasPrefix(link, "http") {
		a.log.Info("Non-http entry link", slog.String("url", src.FeedURL), slog.String("link", link))
	}
	resolved, err := canonical.Resolve(link, src.FeedURL)
	if err != nil {
		a.log.Warn("Keeping raw entry link",
			slog.String("url", src.FeedURL),
			slog.String("link", link),
			slog.Any("error", err),
		)
		return link
	}
	return resolved
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
