package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"feedhub/internal/domain"

	"github.com/mmcdole/gofeed"
)

// FeedParser turns RSS, Atom and JSON Feed documents into domain.RawFeed.
type FeedParser struct {
	log *slog.Logger
}

func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{
		log: log.With(slog.String("component", "parser")),
	}
}

// Parse implements the usecase FeedParser interface.
func (p *FeedParser) Parse(ctx context.Context, reader io.Reader) (*domain.RawFeed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// gofeed parsers keep per-document state, one per call.
	parsed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		p.log.Debug("Error decoding feed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	feed := domain.RawFeed{
		Title:   strings.TrimSpace(parsed.Title),
		Entries: make([]domain.RawEntry, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entry := domain.RawEntry{
			ID:      strings.TrimSpace(item.GUID),
			URL:     strings.TrimSpace(item.Link),
			Title:   strings.TrimSpace(item.Title),
			Author:  authorName(item),
			Content: item.Content,
			Summary: item.Description,
		}
		switch {
		case item.PublishedParsed != nil:
			entry.PublishedAt = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			entry.PublishedAt = *item.UpdatedParsed
		}
		feed.Entries = append(feed.Entries, entry)
	}
	return &feed, nil
}

func authorName(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if item.Author != nil {
		return strings.TrimSpace(item.Author.Name)
	}
	return ""
}
