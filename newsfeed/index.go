package newsfeed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html/template"
)

// FeedFileName returns the output file name of a resource's feed.
func FeedFileName(slug string) string {
	return slug + ".xml"
}

// IndexEntry describes one published feed for the index documents.
type IndexEntry struct {
	Slug string
	Name string
	URL  string
}

// Feed returns the relative location of the entry's feed file.
func (e IndexEntry) Feed() string {
	return FeedFileName(e.Slug)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>pagefeed</title>
{{- range .}}
<link rel="alternate" type="application/rss+xml" title="{{.Name}}" href="{{.Feed}}">
{{- end}}
</head>
<body>
<h1>pagefeed</h1>
<ul>
{{- range .}}
<li><a href="{{.Feed}}">{{.Name}}</a> (<a href="{{.URL}}">source</a>)</li>
{{- end}}
</ul>
</body>
</html>
`))

// RenderIndex renders the HTML index page with one feed-discovery link per
// entry. Entries are rendered in the order given.
func RenderIndex(entries []IndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, entries); err != nil {
		return nil, fmt.Errorf("failed to render index: %w", err)
	}
	return buf.Bytes(), nil
}

type opml struct {
	XMLName xml.Name    `xml:"opml"`
	Version string      `xml:"version,attr"`
	Title   string      `xml:"head>title"`
	Outline []opmlEntry `xml:"body>outline"`
}

type opmlEntry struct {
	Type    string `xml:"type,attr"`
	Text    string `xml:"text,attr"`
	XMLURL  string `xml:"xmlUrl,attr"`
	HTMLURL string `xml:"htmlUrl,attr"`
}

// RenderOPML renders an OPML 2.0 subscription list of all feeds.
func RenderOPML(entries []IndexEntry) ([]byte, error) {
	doc := opml{
		Version: "2.0",
		Title:   "pagefeed",
		Outline: make([]opmlEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Outline = append(doc.Outline, opmlEntry{
			Type:    "rss",
			Text:    e.Name,
			XMLURL:  e.Feed(),
			HTMLURL: e.URL,
		})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render OPML: %w", err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}
