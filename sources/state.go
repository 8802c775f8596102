package sources

import (
	"time"

	"github.com/pevans/pagefeed/newsfeed"
)

// State is what is remembered about a page between passes.
type State struct {
	// LastChecked is when the page was last fetched. Zero means never.
	LastChecked time.Time `json:"last_checked"`
	// LastModified is when the page last showed an observable change.
	LastModified time.Time `json:"last_modified"`
	// Error holds the message of the failure that is currently reported,
	// if any.
	Error string `json:"error,omitempty"`
	// ETag is the cache validator sent back on the next request. Always
	// empty while Error is set.
	ETag string `json:"etag,omitempty"`
	// Items is the last known good content.
	Items []newsfeed.Item `json:"items"`
}

// NewState returns the state of a page that has never been checked.
func NewState() State {
	return State{Items: []newsfeed.Item{}}
}

// NeverChecked reports whether the page has not been fetched yet.
func (s State) NeverChecked() bool {
	return s.LastChecked.IsZero()
}

// Outcome is the classified result of one fetch. Unchanged, Changed and
// Failed are the only implementations.
type Outcome interface {
	outcome()
}

// Unchanged means the server reported the content as not modified.
type Unchanged struct{}

// Changed carries freshly extracted content and the new cache validator.
type Changed struct {
	ETag  string
	Items []newsfeed.Item
}

// Failed carries a description of a transport, HTTP or extraction failure.
type Failed struct {
	Message string
}

func (Unchanged) outcome() {}
func (Changed) outcome()   {}
func (Failed) outcome()    {}

// Reconcile merges a fetch outcome into the prior state of a page. Content
// identical to what is already known counts as Unchanged. A failure identical
// to the one already reported only advances LastChecked and keeps the error.
// LastModified moves on a genuine transition and nowhere else.
func Reconcile(prior State, outcome Outcome, now time.Time) State {
	now = now.Round(0).UTC()

	switch o := outcome.(type) {
	case Changed:
		if newsfeed.ItemsEqual(o.Items, prior.Items) {
			return unchanged(prior, now)
		}
		items := o.Items
		if items == nil {
			items = []newsfeed.Item{}
		}
		return State{
			LastChecked:  now,
			LastModified: now,
			ETag:         o.ETag,
			Items:        items,
		}

	case Failed:
		if o.Message == prior.Error {
			next := prior
			next.LastChecked = now
			return next
		}
		next := prior
		next.LastChecked = now
		next.LastModified = now
		next.Error = o.Message
		next.ETag = ""
		return next

	default:
		return unchanged(prior, now)
	}
}

func unchanged(prior State, now time.Time) State {
	next := prior
	next.Error = ""
	next.LastChecked = now
	return next
}
