package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"feedhub/internal/domain"
)

// DefaultFetchTimeout bounds one source's fetch and parse.
const DefaultFetchTimeout = 3 * time.Second

// FeedFetcher downloads the raw document of a feed.
// The returned io.ReadCloser must be closed by the caller.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FeedParser turns a raw document into a domain.RawFeed.
type FeedParser interface {
	Parse(ctx context.Context, reader io.Reader) (*domain.RawFeed, error)
}

// FeedLoader fetches and parses one source under a hard timeout.
// Errors it returns wrap exactly one of domain.ErrTimeout, domain.ErrFetch
// or domain.ErrParse; the underlying library error is kept as text only.
type FeedLoader struct {
	fetcher FeedFetcher
	parser  FeedParser
	timeout time.Duration
	log     *slog.Logger
}

func NewFeedLoader(fetcher FeedFetcher, parser FeedParser, timeout time.Duration, log *slog.Logger) *FeedLoader {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &FeedLoader{
		fetcher: fetcher,
		parser:  parser,
		timeout: timeout,
		log:     log.With(slog.String("component", "feed-loader")),
	}
}

// Load retrieves and parses the feed at sourceURL.
func (l *FeedLoader) Load(ctx context.Context, sourceURL string) (*domain.RawFeed, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	log := l.log.With(slog.String("url", sourceURL))

	reader, err := l.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, l.classify(ctx, domain.ErrFetch, sourceURL, err)
	}
	defer reader.Close()

	feed, err := l.parser.Parse(ctx, reader)
	if err != nil {
		return nil, l.classify(ctx, domain.ErrParse, sourceURL, err)
	}
	if ctx.Err() != nil {
		return nil, l.classify(ctx, domain.ErrParse, sourceURL, ctx.Err())
	}
	log.Debug("Feed loaded",
		slog.Int("entries", len(feed.Entries)),
		slog.Duration("duration", time.Since(start)),
	)
	return feed, nil
}

// classify maps err to the loader's taxonomy. Running out of time at any
// stage is a timeout, whatever the stage reported.
func (l *FeedLoader) classify(ctx context.Context, kind error, sourceURL string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return fmt.Errorf("%w after %s: %s: %v", domain.ErrTimeout, l.timeout, sourceURL, err)
	}
	return fmt.Errorf("%w: %s: %v", kind, sourceURL, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
