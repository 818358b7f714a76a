package syndication

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"feedhub/internal/domain"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var updated = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func sampleFeed() *domain.AggregateFeed {
	return &domain.AggregateFeed{
		Group:       "dev",
		Title:       "Korea Awesome Developers",
		Author:      "Awesome Blogs",
		Description: "Daily picks",
		Link:        "https://feeds.example.com/feeds/dev",
		UpdatedAt:   updated,
		Entries: []domain.AggregateEntry{
			{
				Link:        "https://a.example.com/posts/1",
				Title:       "First post",
				UpdatedAt:   updated,
				SummaryHTML: `<p>Hello <a href="https://a.example.com/x">x</a></p>`,
				Author:      "Alice",
			},
			{
				Link:        "https://b.example.com/posts/2",
				Title:       "Second post",
				UpdatedAt:   updated.Add(-time.Hour),
				SummaryHTML: "plain",
				Author:      "Bob",
			},
		},
	}
}

func TestRender_XMLFormatsParseBack(t *testing.T) {
	for _, f := range []Format{Atom, RSS} {
		t.Run(string(f), func(t *testing.T) {
			body, err := Render(sampleFeed(), f)
			require.NoError(t, err)

			parsed, err := gofeed.NewParser().ParseString(body)
			require.NoError(t, err)
			assert.Equal(t, "Korea Awesome Developers", parsed.Title)
			require.Len(t, parsed.Items, 2)
			assert.Equal(t, "First post", parsed.Items[0].Title)
			assert.Equal(t, "https://a.example.com/posts/1", parsed.Items[0].Link)
		})
	}
}

func TestRender_AtomUpdated(t *testing.T) {
	body, err := Render(sampleFeed(), Atom)
	require.NoError(t, err)

	parsed, err := gofeed.NewParser().ParseString(body)
	require.NoError(t, err)
	require.NotNil(t, parsed.UpdatedParsed)
	assert.True(t, parsed.UpdatedParsed.Equal(updated))
	assert.Contains(t, parsed.Items[0].Description, "Hello")
	require.NotNil(t, parsed.Items[0].Author)
	assert.Equal(t, "Alice", parsed.Items[0].Author.Name)
}

func TestRender_JSON(t *testing.T) {
	body, err := Render(sampleFeed(), JSON)
	require.NoError(t, err)

	var doc struct {
		Title string `json:"title"`
		Items []struct {
			ID          string `json:"id"`
			URL         string `json:"url"`
			Title       string `json:"title"`
			ContentHTML string `json:"content_html"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "Korea Awesome Developers", doc.Title)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "https://b.example.com/posts/2", doc.Items[1].URL)
	assert.Equal(t, "plain", doc.Items[1].ContentHTML)
}

func TestRender_EmptyFeed(t *testing.T) {
	feed := &domain.AggregateFeed{Title: "Empty", UpdatedAt: updated}
	for _, f := range []Format{Atom, RSS, JSON} {
		body, err := Render(feed, f)
		require.NoError(t, err)
		assert.True(t, strings.Contains(body, "Empty"))
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(sampleFeed(), Format("yaml"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"xml":   Atom,
		".xml":  Atom,
		"ATOM":  Atom,
		".atom": Atom,
		"rss":   RSS,
		"json":  JSON,
		".json": JSON,
	}
	for in, want := range tests {
		got, ok := ParseFormat(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseFormat("html")
	assert.False(t, ok)
}
