package scraper

import "github.com/pevans/pagefeed/newsfeed"

// Mode names as they appear in configuration files.
const (
	ModeText      = "text"
	ModeHTML      = "html"
	ModeMultiHTML = "multihtml"
	ModeJSON      = "json"
)

// Mode defines how a fetched document is turned into items. The set of
// modes is closed: Text, HTML, MultiHTML and JSON are the only
// implementations.
type Mode interface {
	// Name returns the configuration name of the mode.
	Name() string

	extract(document string) ([]newsfeed.Item, error)
}

// Selectors locate the parts of an item inside a markup document. Empty
// fields fall back to defaults; see MultiHTML.
type Selectors struct {
	Item  string `json:"item_selector,omitempty"`
	Title string `json:"title_selector,omitempty"`
	Body  string `json:"body_selector,omitempty"`
	Link  string `json:"link_selector,omitempty"`
}

// Text publishes the whole document as a single plain-text item.
type Text struct{}

// HTML publishes the document as a single markup item assembled from every
// fragment matched by the selectors.
type HTML struct {
	Selectors Selectors
}

// MultiHTML publishes one markup item per element matched by the item
// selector.
//
// Defaults: the item selector matches the document body, the title is the
// text of the first heading, the body is the item element itself and the
// link is read from the item element's href or src attribute.
type MultiHTML struct {
	Selectors Selectors
}

// JSON evaluates a jq filter against a JSON document. Every value the filter
// produces must be an object with a string "text" field and may carry
// "title" and "url" strings.
type JSON struct {
	// Filter is the jq program. Empty means DefaultFilter.
	Filter string
}

func (Text) Name() string      { return ModeText }
func (HTML) Name() string      { return ModeHTML }
func (MultiHTML) Name() string { return ModeMultiHTML }
func (JSON) Name() string      { return ModeJSON }

// Extract turns a document into items according to mode. A nil mode is
// treated as Text.
func Extract(mode Mode, document string) ([]newsfeed.Item, error) {
	if mode == nil {
		mode = Text{}
	}
	return mode.extract(document)
}

func (Text) extract(document string) ([]newsfeed.Item, error) {
	return []newsfeed.Item{{Body: newsfeed.TextBody(document)}}, nil
}
