package newsfeed

import "slices"

// BodyKind tells consumers how to interpret an item body.
type BodyKind string

const (
	// BodyText is plain text that must be escaped before being embedded in
	// markup.
	BodyText BodyKind = "text"
	// BodyHTML is pre-rendered markup.
	BodyHTML BodyKind = "html"
)

// Body is the content of an item, either plain text or markup.
type Body struct {
	Kind    BodyKind `json:"kind"`
	Content string   `json:"content"`
}

// TextBody wraps plain text.
func TextBody(s string) Body {
	return Body{Kind: BodyText, Content: s}
}

// HTMLBody wraps pre-rendered markup.
func HTMLBody(s string) Body {
	return Body{Kind: BodyHTML, Content: s}
}

// Item is one piece of extracted content. An empty Title or URL means the
// item has none.
type Item struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	Body  Body   `json:"body"`
}

// ItemsEqual reports whether two item lists are structurally identical,
// element by element and in order. A nil list equals an empty one.
func ItemsEqual(a, b []Item) bool {
	return slices.Equal(a, b)
}
