// Package syndication renders an aggregate feed as Atom, RSS or JSON Feed.
package syndication

import (
	"fmt"
	"strings"

	"feedhub/internal/domain"

	"github.com/gorilla/feeds"
)

type Format string

const (
	Atom Format = "atom"
	RSS  Format = "rss"
	JSON Format = "json"
)

// ParseFormat maps a query value or path suffix to a Format. "xml" means Atom.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "atom", "xml":
		return Atom, true
	case "rss":
		return RSS, true
	case "json":
		return JSON, true
	}
	return "", false
}

// ContentType is the response media type of f.
func (f Format) ContentType() string {
	switch f {
	case RSS:
		return "application/rss+xml; charset=utf-8"
	case JSON:
		return "application/feed+json; charset=utf-8"
	default:
		return "application/atom+xml; charset=utf-8"
	}
}

// Render serializes feed in format f.
func Render(feed *domain.AggregateFeed, f Format) (string, error) {
	out := toFeeds(feed)
	var (
		body string
		err  error
	)
	switch f {
	case Atom:
		body, err = out.ToAtom()
	case RSS:
		body, err = out.ToRss()
	case JSON:
		body, err = out.ToJSON()
	default:
		return "", fmt.Errorf("unsupported feed format %q", f)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render %s feed: %w", f, err)
	}
	return body, nil
}

func toFeeds(feed *domain.AggregateFeed) *feeds.Feed {
	out := &feeds.Feed{
		Title:       feed.Title,
		Link:        &feeds.Link{Href: feed.Link},
		Description: feed.Description,
		Id:          feed.Link,
		Updated:     feed.UpdatedAt,
		Created:     feed.UpdatedAt,
		Items:       make([]*feeds.Item, 0, len(feed.Entries)),
	}
	if feed.Author != "" {
		out.Author = &feeds.Author{Name: feed.Author}
	}
	for _, e := range feed.Entries {
		item := &feeds.Item{
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.Link},
			Id:          e.Link,
			Description: e.SummaryHTML,
			Content:     e.SummaryHTML,
			Created:     e.UpdatedAt,
			Updated:     e.UpdatedAt,
		}
		if e.Author != "" {
			item.Author = &feeds.Author{Name: e.Author}
		}
		out.Items = append(out.Items, item)
	}
	return out
}
