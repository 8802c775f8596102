package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/pevans/pagefeed/newsfeed"
)

// DefaultFilter wraps the whole input as a single item.
const DefaultFilter = `{"text": tostring}`

// MaxResults caps how many values a filter may produce. Filters such as
// `repeat(.)` never terminate on their own.
const MaxResults = 100

// ErrMissingText is returned when a filter result lacks a string "text"
// field.
var ErrMissingText = errors.New("text key missing")

func (m JSON) extract(document string) ([]newsfeed.Item, error) {
	source := m.Filter
	if source == "" {
		source = DefaultFilter
	}

	query, err := gojq.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", err)
	}

	input, err := decodeJSON(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	items := []newsfeed.Item{}
	iter := code.Run(input)
	for len(items) < MaxResults {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("filter failed: %w", err)
		}

		item, err := resultToItem(v)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// decodeJSON parses exactly one JSON value. Numbers stay json.Number so
// integers beyond float64 precision reach the filter intact.
func decodeJSON(document string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(document))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// resultToItem maps one filter result onto an item. Non-string title and
// url values are ignored.
func resultToItem(v any) (newsfeed.Item, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return newsfeed.Item{}, ErrMissingText
	}

	text, ok := obj["text"].(string)
	if !ok {
		return newsfeed.Item{}, ErrMissingText
	}

	item := newsfeed.Item{Body: newsfeed.HTMLBody(text)}
	if title, ok := obj["title"].(string); ok {
		item.Title = title
	}
	if url, ok := obj["url"].(string); ok {
		item.URL = url
	}
	return item, nil
}
