package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *FeedParser {
	return NewFeedParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFeedParser_Parse_RSS(t *testing.T) {
	xmlData := `<?xml version="1.0"?>
	<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
	<channel>
	<title>Test Feed</title>
	<link>https://example.com</link>
	<description>Test Description</description>
	<item>
	<title>Item 1</title>
	<link>https://example.com/item1</link>
	<guid>item-1</guid>
	<dc:creator>Jane</dc:creator>
	<description>Item 1 Description</description>
	<content:encoded><![CDATA[<p>Item 1 body</p>]]></content:encoded>
	<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
	</item>
	<item>
	<title>Item 2</title>
	<link>/item2</link>
	<description>Item 2 Description</description>
	<pubDate>Tue, 03 Jan 2006 12:00:00 +0900</pubDate>
	</item>
	</channel>
	</rss>`

	feed, err := newTestParser().Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, "Test Feed", feed.Title)
	require.Len(t, feed.Entries, 2)

	first := feed.Entries[0]
	assert.Equal(t, "Item 1", first.Title)
	assert.Equal(t, "https://example.com/item1", first.URL)
	assert.Equal(t, "item-1", first.ID)
	assert.Equal(t, "Jane", first.Author)
	assert.Equal(t, "Item 1 Description", first.Summary)
	assert.Equal(t, "<p>Item 1 body</p>", first.Content)
	assert.WithinDuration(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), first.PublishedAt, time.Second)

	second := feed.Entries[1]
	assert.Equal(t, "/item2", second.URL)
	assert.Empty(t, second.Content)
	assert.WithinDuration(t, time.Date(2006, 1, 3, 3, 0, 0, 0, time.UTC), second.PublishedAt, time.Second)
}

func TestFeedParser_Parse_Atom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
	<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Feed</title>
	<id>urn:feed</id>
	<updated>2024-03-01T10:00:00Z</updated>
	<entry>
	<title>Entry</title>
	<id>urn:entry:1</id>
	<link href="https://example.com/entry"/>
	<updated>2024-03-01T10:00:00Z</updated>
	<author><name>Kim</name></author>
	<summary>short</summary>
	</entry>
	</feed>`

	feed, err := newTestParser().Parse(context.Background(), strings.NewReader(atomData))

	require.NoError(t, err)
	assert.Equal(t, "Atom Feed", feed.Title)
	require.Len(t, feed.Entries, 1)
	entry := feed.Entries[0]
	assert.Equal(t, "urn:entry:1", entry.ID)
	assert.Equal(t, "https://example.com/entry", entry.URL)
	assert.Equal(t, "Kim", entry.Author)
	assert.Equal(t, "short", entry.Summary)
	assert.True(t, entry.PublishedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestFeedParser_Parse_MissingDate(t *testing.T) {
	xmlData := `<rss version="2.0"><channel><title>T</title>
	<item><title>No date</title><link>https://example.com/x</link></item>
	</channel></rss>`

	feed, err := newTestParser().Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.Len(t, feed.Entries, 1)
	assert.True(t, feed.Entries[0].PublishedAt.IsZero())
}

func TestFeedParser_Parse_Invalid(t *testing.T) {
	feed, err := newTestParser().Parse(context.Background(), strings.NewReader("this is not a feed"))

	assert.Error(t, err)
	assert.Nil(t, feed)
	assert.Contains(t, err.Error(), "failed to decode feed")
}

func TestFeedParser_Parse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed, err := newTestParser().Parse(ctx, strings.NewReader(`<rss><channel><title>T</title></channel></rss>`))

	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, feed)
}

func TestFeedParser_Parse_EmptyFeed(t *testing.T) {
	xmlData := `<rss version="2.0"><channel><title>Empty Feed</title><link>https://example.com</link></channel></rss>`

	feed, err := newTestParser().Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	assert.Equal(t, "Empty Feed", feed.Title)
	assert.Empty(t, feed.Entries)
}
