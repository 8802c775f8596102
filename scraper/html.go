package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/pevans/pagefeed/newsfeed"
)

const (
	defaultItemSelector  = "body"
	defaultTitleSelector = "h1, h2, h3, h4, h5, h6"
)

// compiledSelectors holds parsed selectors. A nil body or link matcher means
// "use the item element itself".
type compiledSelectors struct {
	item  cascadia.Selector
	title cascadia.Selector
	body  cascadia.Selector
	link  cascadia.Selector
}

// compile parses every selector up front. goquery panics on invalid
// selectors, so they must be checked before any Find.
func (s Selectors) compile() (*compiledSelectors, error) {
	var (
		c   compiledSelectors
		err error
	)

	if c.item, err = compileSelector("item_selector", s.Item, defaultItemSelector); err != nil {
		return nil, err
	}
	if c.title, err = compileSelector("title_selector", s.Title, defaultTitleSelector); err != nil {
		return nil, err
	}
	if c.body, err = compileSelector("body_selector", s.Body, ""); err != nil {
		return nil, err
	}
	if c.link, err = compileSelector("link_selector", s.Link, ""); err != nil {
		return nil, err
	}

	return &c, nil
}

func compileSelector(field, selector, fallback string) (cascadia.Selector, error) {
	if selector == "" {
		selector = fallback
	}
	if selector == "" {
		return nil, nil
	}

	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, selector, err)
	}
	return compiled, nil
}

func (m MultiHTML) extract(document string) ([]newsfeed.Item, error) {
	sel, err := m.Selectors.compile()
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	items := []newsfeed.Item{}
	var extractErr error
	doc.FindMatcher(sel.item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		item, err := extractItem(s, sel)
		if err != nil {
			extractErr = err
			return false
		}
		items = append(items, item)
		return true
	})
	if extractErr != nil {
		return nil, extractErr
	}

	return items, nil
}

// extractItem reads title, body and link out of one item element.
func extractItem(s *goquery.Selection, sel *compiledSelectors) (newsfeed.Item, error) {
	var item newsfeed.Item

	if title := s.FindMatcher(sel.title).First(); title.Length() > 0 {
		item.Title = strings.TrimSpace(title.Text())
	}

	bodyEl := s
	if sel.body != nil {
		if found := s.FindMatcher(sel.body).First(); found.Length() > 0 {
			bodyEl = found
		}
	}
	body, err := bodyEl.Html()
	if err != nil {
		return newsfeed.Item{}, fmt.Errorf("failed to render item body: %w", err)
	}
	item.Body = newsfeed.HTMLBody(body)

	linkEl := s
	if sel.link != nil {
		if found := s.FindMatcher(sel.link).First(); found.Length() > 0 {
			linkEl = found
		}
	}
	if href, ok := linkEl.Attr("href"); ok {
		item.URL = href
	} else if src, ok := linkEl.Attr("src"); ok {
		item.URL = src
	}

	return item, nil
}

func (m HTML) extract(document string) ([]newsfeed.Item, error) {
	parts, err := MultiHTML(m).extract(document)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return []newsfeed.Item{}, nil
	}

	var (
		body  strings.Builder
		title string
		url   string
	)
	for _, part := range parts {
		if part.Body.Kind == newsfeed.BodyHTML {
			body.WriteString(part.Body.Content)
		}
		// First non-empty title and link win
		if title == "" {
			title = part.Title
		}
		if url == "" {
			url = part.URL
		}
	}

	return []newsfeed.Item{{
		Title: title,
		URL:   url,
		Body:  newsfeed.HTMLBody(body.String()),
	}}, nil
}
