package newsfeed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a sample page
func createTestPage(items ...Item) Page {
	return Page{
		Name:         "Example",
		URL:          "https://example.com/",
		LastModified: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Items:        items,
	}
}

// TestSynthesize_EmptyPage verifies the placeholder entry for empty pages
func TestSynthesize_EmptyPage(t *testing.T) {
	entries := Synthesize(createTestPage())

	require.Len(t, entries, 1)
	assert.Equal(t, "empty:Example", entries[0].ID)
	assert.Equal(t, "No items found", entries[0].Title)
	assert.Equal(t, "https://example.com/", entries[0].Link)
}

// TestSynthesize_ErrorFirst verifies the error entry is prepended to items
func TestSynthesize_ErrorFirst(t *testing.T) {
	page := createTestPage(Item{Title: "Kept", Body: HTMLBody("<p>old</p>")})
	page.Error = "HTTP status 503"

	entries := Synthesize(page)

	require.Len(t, entries, 2)
	assert.Equal(t, "Error", entries[0].Title)
	assert.Equal(t, "https://example.com/", entries[0].Link)
	assert.Equal(t, "HTTP status 503", entries[0].Description)
	assert.Equal(t, "Kept", entries[1].Title)
}

// TestSynthesize_ErrorWithoutItems verifies no placeholder accompanies an
// error
func TestSynthesize_ErrorWithoutItems(t *testing.T) {
	page := createTestPage()
	page.Error = "connection refused"

	entries := Synthesize(page)

	require.Len(t, entries, 1)
	assert.Equal(t, "Error", entries[0].Title)
	assert.True(t, strings.HasPrefix(entries[0].ID, "urn:uuid:"))
}

// TestSynthesize_ErrorIDFollowsModification verifies a recurring error gets
// a fresh entry each time it is observed anew, and a stable one otherwise
func TestSynthesize_ErrorIDFollowsModification(t *testing.T) {
	first := createTestPage()
	first.Error = "HTTP status 500"

	recurred := first
	recurred.LastModified = first.LastModified.Add(48 * time.Hour)

	firstID := Synthesize(first)[0].ID
	assert.Equal(t, firstID, Synthesize(first)[0].ID, "same page must keep its error ID")
	assert.NotEqual(t, firstID, Synthesize(recurred)[0].ID,
		"the same message at a later modification must get a new ID")

	inZone := first
	inZone.LastModified = first.LastModified.In(time.FixedZone("EST", -5*60*60))
	assert.Equal(t, firstID, Synthesize(inZone)[0].ID, "the ID must not depend on the time zone")
}

// TestSynthesize_Fallbacks verifies page name and URL fill in missing item
// fields
func TestSynthesize_Fallbacks(t *testing.T) {
	entries := Synthesize(createTestPage(
		Item{Body: TextBody("plain")},
		Item{Title: "Own", URL: "https://example.com/own", Body: HTMLBody("<b>x</b>")},
	))

	require.Len(t, entries, 2)
	assert.Equal(t, "Example", entries[0].Title)
	assert.Equal(t, "https://example.com/", entries[0].Link)
	assert.Equal(t, "Own", entries[1].Title)
	assert.Equal(t, "https://example.com/own", entries[1].Link)
}

// TestSynthesize_BodyRendering verifies text bodies are escaped and markup
// passes through
func TestSynthesize_BodyRendering(t *testing.T) {
	entries := Synthesize(createTestPage(
		Item{Body: TextBody("a < b")},
		Item{Body: HTMLBody("<p>a</p>")},
	))

	assert.Equal(t, "<pre>a &lt; b</pre>", entries[0].Description)
	assert.Equal(t, "<p>a</p>", entries[1].Description)
}

// TestItemID_ContentDerived verifies identifiers follow content only
func TestItemID_ContentDerived(t *testing.T) {
	a := Item{Title: "T", Body: HTMLBody("<p>x</p>")}
	b := Item{Title: "T", Body: HTMLBody("<p>x</p>")}
	c := Item{Title: "T", Body: HTMLBody("<p>y</p>")}
	d := Item{Title: "T", Body: TextBody("<p>x</p>")}

	assert.Equal(t, ItemID(a), ItemID(b))
	assert.NotEqual(t, ItemID(a), ItemID(c))
	assert.NotEqual(t, ItemID(a), ItemID(d), "body kind should be part of the identity")
	assert.True(t, strings.HasPrefix(ItemID(a), "urn:uuid:"))
}

// TestItemsEqual verifies structural list comparison
func TestItemsEqual(t *testing.T) {
	a := []Item{{Title: "x", Body: TextBody("1")}, {Body: HTMLBody("2")}}
	b := []Item{{Title: "x", Body: TextBody("1")}, {Body: HTMLBody("2")}}

	assert.True(t, ItemsEqual(a, b))
	assert.True(t, ItemsEqual(nil, []Item{}))
	assert.False(t, ItemsEqual(a, b[:1]))
	assert.False(t, ItemsEqual(a, []Item{b[1], b[0]}), "order should matter")
}

// TestRenderRSS_Deterministic verifies identical input renders identically
func TestRenderRSS_Deterministic(t *testing.T) {
	page := createTestPage(Item{Title: "One", Body: HTMLBody("<p>1</p>")})

	first, err := RenderRSS(page, Synthesize(page))
	require.NoError(t, err)
	second, err := RenderRSS(page, Synthesize(page))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestRenderRSS_Parses verifies the output is a valid feed carrying the
// entry identifiers
func TestRenderRSS_Parses(t *testing.T) {
	item := Item{Title: "One", URL: "https://example.com/1", Body: HTMLBody("<p>1</p>")}
	page := createTestPage(item)
	page.Error = "HTTP status 500"

	data, err := RenderRSS(page, Synthesize(page))
	require.NoError(t, err)

	feed, err := gofeed.NewParser().ParseString(string(data))
	require.NoError(t, err)

	assert.Equal(t, "rss", feed.FeedType)
	assert.Equal(t, "Example", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Error", feed.Items[0].Title)
	assert.Equal(t, ItemID(item), feed.Items[1].GUID)
	assert.Equal(t, "https://example.com/1", feed.Items[1].Link)
	assert.Equal(t, "<p>1</p>", feed.Items[1].Description)
	require.NotNil(t, feed.Items[1].PublishedParsed)
	assert.True(t, page.LastModified.Equal(*feed.Items[1].PublishedParsed))
}

// TestRenderIndex verifies feed-discovery links are present
func TestRenderIndex(t *testing.T) {
	data, err := RenderIndex([]IndexEntry{
		{Slug: "alpha", Name: "Alpha & Co", URL: "https://alpha.example/"},
		{Slug: "beta", Name: "Beta", URL: "https://beta.example/"},
	})
	require.NoError(t, err)

	html := string(data)
	assert.Contains(t, html, `<link rel="alternate" type="application/rss+xml" title="Alpha &amp; Co" href="alpha.xml">`)
	assert.Contains(t, html, `href="beta.xml"`)
	assert.Less(t, strings.Index(html, "alpha.xml"), strings.Index(html, "beta.xml"))
}

// TestRenderOPML verifies one outline per feed
func TestRenderOPML(t *testing.T) {
	data, err := RenderOPML([]IndexEntry{
		{Slug: "alpha", Name: "Alpha", URL: "https://alpha.example/"},
	})
	require.NoError(t, err)

	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `<opml version="2.0">`)
	assert.Contains(t, doc, `<outline type="rss" text="Alpha" xmlUrl="alpha.xml" htmlUrl="https://alpha.example/"></outline>`)
}
