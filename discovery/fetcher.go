package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pevans/pagefeed/config"
	"github.com/pevans/pagefeed/scraper"
	"github.com/pevans/pagefeed/sources"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

// UserAgent identifies pagefeed to the sites it monitors.
const UserAgent = "pagefeed/1.0 (+https://github.com/pevans/pagefeed)"

// Fetcher performs one conditional request per resource and classifies the
// response.
type Fetcher struct {
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPClient returns the client used for page fetches.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		client: client,
		logger: logger.With().Str("component", "Fetcher").Logger(),
	}
}

// Fetch requests res and reduces the response to an outcome. etag is the
// validator remembered from the previous successful fetch, if any. Fetch
// never returns an error: every failure becomes sources.Failed.
func (f *Fetcher) Fetch(ctx context.Context, res config.Resource, etag string) sources.Outcome {
	start := time.Now()
	outcome := f.fetch(ctx, res, etag)

	log := f.logger.With().
		Str("slug", res.Slug).
		Str("method", res.Method()).
		Dur("elapsed", time.Since(start)).
		Logger()

	switch o := outcome.(type) {
	case sources.Unchanged:
		log.Debug().Msg("Not modified")
	case sources.Changed:
		log.Debug().Int("items", len(o.Items)).Str("etag", o.ETag).Msg("Fetched")
	case sources.Failed:
		log.Warn().Str("error", o.Message).Msg("Fetch failed")
	}

	return outcome
}

func (f *Fetcher) fetch(ctx context.Context, res config.Resource, etag string) sources.Outcome {
	var body io.Reader
	if res.Body != nil {
		body = strings.NewReader(*res.Body)
	}

	req, err := http.NewRequestWithContext(ctx, res.Method(), res.URL, body)
	if err != nil {
		return sources.Failed{Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("User-Agent", UserAgent)
	for name, value := range res.Headers {
		req.Header.Set(name, value)
	}
	// POST requests are never conditional
	if etag != "" && res.Body == nil {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return sources.Failed{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return sources.Unchanged{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sources.Failed{Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	document, err := readDocument(resp)
	if err != nil {
		return sources.Failed{Message: err.Error()}
	}

	if res.Strip != "" {
		re, err := regexp.Compile(res.Strip)
		if err != nil {
			return sources.Failed{Message: fmt.Sprintf("invalid strip pattern: %v", err)}
		}
		document = re.ReplaceAllString(document, "")
	}

	items, err := scraper.Extract(res.Mode, document)
	if err != nil {
		return sources.Failed{Message: err.Error()}
	}

	return sources.Changed{
		ETag:  resp.Header.Get("ETag"),
		Items: items,
	}
}

// readDocument decodes the response body to UTF-8 using the declared or
// sniffed charset.
func readDocument(resp *http.Response) (string, error) {
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	return string(data), nil
}
