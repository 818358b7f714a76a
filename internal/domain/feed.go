package domain

import "time"

// SourceDescriptor describes one syndication source of a group.
type SourceDescriptor struct {
	FeedURL    string `yaml:"feed_url" json:"feed_url"`
	AuthorName string `yaml:"author_name,omitempty" json:"author_name,omitempty"`
	Group      string `yaml:"-" json:"group"`
}

// RawFeed is the parsed content of a single source.
type RawFeed struct {
	Title   string
	Entries []RawEntry
}

// RawEntry is one item of a RawFeed as delivered by the feed parser.
// PublishedAt is zero when the source did not carry a usable date.
type RawEntry struct {
	ID          string
	URL         string
	Title       string
	Author      string
	Content     string
	Summary     string
	PublishedAt time.Time
}

// AggregateEntry is one item of the merged output feed.
type AggregateEntry struct {
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	UpdatedAt   time.Time `json:"updated_at"`
	SummaryHTML string    `json:"summary"`
	Author      string    `json:"author"`
}

// AggregateFeed is the merged feed of a group.
type AggregateFeed struct {
	Group       string
	Title       string
	Author      string
	Description string
	Link        string
	UpdatedAt   time.Time
	Entries     []AggregateEntry
}
