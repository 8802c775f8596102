package newsfeed

import (
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
)

// entryNamespace seeds the name-based UUIDs used as feed entry identifiers.
// Changing it changes every identifier ever published.
var entryNamespace = uuid.MustParse("7f0a3c9e-5d1b-4c62-9a0e-3b8f2e6d4a17")

const (
	errorTitle = "Error"
	emptyTitle = "No items found"
)

// Page is everything the synthesizer needs to know about one monitored
// resource: its configured identity plus its persisted state.
type Page struct {
	Name         string
	URL          string
	LastModified time.Time
	Error        string
	Items        []Item
}

// Entry is one item of a generated feed.
type Entry struct {
	ID          string
	Title       string
	Link        string
	Description string
	Published   time.Time
}

// Synthesize turns a page into an ordered list of feed entries. A set error
// is reported first as a synthetic entry; an empty, error-free page yields
// a single placeholder entry so readers always get something to show.
func Synthesize(page Page) []Entry {
	entries := make([]Entry, 0, len(page.Items)+1)

	if page.Error != "" {
		entries = append(entries, Entry{
			ID:          contentID("error", page.Error, page.LastModified.UTC().Format(time.RFC3339Nano)),
			Title:       errorTitle,
			Link:        page.URL,
			Description: html.EscapeString(page.Error),
			Published:   page.LastModified,
		})
	}

	for _, item := range page.Items {
		// Fall back to the page identity for missing title/link
		title := item.Title
		if title == "" {
			title = page.Name
		}
		link := item.URL
		if link == "" {
			link = page.URL
		}

		entries = append(entries, Entry{
			ID:          ItemID(item),
			Title:       title,
			Link:        link,
			Description: renderBody(item.Body),
			Published:   page.LastModified,
		})
	}

	if len(page.Items) == 0 && page.Error == "" {
		entries = append(entries, Entry{
			ID:          "empty:" + page.Name,
			Title:       emptyTitle,
			Link:        page.URL,
			Description: html.EscapeString("No items were found on " + page.URL),
			Published:   page.LastModified,
		})
	}

	return entries
}

// ItemID derives the stable feed identifier of an item from its content, so
// the same content always maps to the same identifier across passes.
func ItemID(item Item) string {
	return contentID("item", string(item.Body.Kind), item.Title, item.URL, item.Body.Content)
}

func contentID(parts ...string) string {
	// NUL-separated so ("ab", "c") and ("a", "bc") differ
	name := strings.Join(parts, "\x00")
	return uuid.NewSHA1(entryNamespace, []byte(name)).URN()
}

func renderBody(body Body) string {
	if body.Kind == BodyHTML {
		return body.Content
	}
	return "<pre>" + html.EscapeString(body.Content) + "</pre>"
}
