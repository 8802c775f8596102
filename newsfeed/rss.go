package newsfeed

import (
	"bytes"
	"fmt"

	"github.com/gorilla/feeds"
)

// RenderRSS serializes the entries of a page as an RSS 2.0 document. The
// output depends only on its arguments, so rendering the same page twice
// yields identical bytes.
func RenderRSS(page Page, entries []Entry) ([]byte, error) {
	feed := &feeds.Feed{
		Title:       page.Name,
		Link:        &feeds.Link{Href: page.URL},
		Description: fmt.Sprintf("Changes to %s", page.URL),
		Created:     page.LastModified,
		Updated:     page.LastModified,
		Items:       make([]*feeds.Item, 0, len(entries)),
	}

	for _, entry := range entries {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          entry.ID,
			IsPermaLink: "false",
			Title:       entry.Title,
			Link:        &feeds.Link{Href: entry.Link},
			Description: entry.Description,
			Created:     entry.Published,
		})
	}

	var buf bytes.Buffer
	if err := feed.WriteRss(&buf); err != nil {
		return nil, fmt.Errorf("failed to render RSS for %s: %w", page.Name, err)
	}
	return buf.Bytes(), nil
}
