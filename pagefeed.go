package pagefeed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pevans/pagefeed/config"
	"github.com/pevans/pagefeed/newsfeed"
	"github.com/pevans/pagefeed/sources"
	"github.com/rs/zerolog"
)

// Output files written next to the per-page feeds.
const (
	IndexFile = "index.html"
	OPMLFile  = "index.opml"
)

// Fetcher fetches one resource. discovery.Fetcher is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context, res config.Resource, etag string) sources.Outcome
}

// Service runs passes over a fixed set of resources.
type Service struct {
	resources []config.Resource
	fetcher   Fetcher
	store     sources.Store
	writer    *newsfeed.Writer
	logger    zerolog.Logger
	now       func() time.Time
}

// Summary counts what happened during one pass.
type Summary struct {
	// Checked is the number of resources fetched.
	Checked int
	// Changed is the number of resources whose observable state moved.
	Changed int
	// Failed is the number of fetched resources left in an error state.
	Failed int
	// Skipped is the number of resources that were not due.
	Skipped int
	// Written is the number of output files rewritten.
	Written int
}

// NewService creates a service. Resources are processed and published in
// slug order.
func NewService(
	resources []config.Resource,
	fetcher Fetcher,
	store sources.Store,
	writer *newsfeed.Writer,
	logger zerolog.Logger,
) *Service {
	sorted := slices.Clone(resources)
	slices.SortFunc(sorted, func(a, b config.Resource) int {
		return strings.Compare(a.Slug, b.Slug)
	})

	return &Service{
		resources: sorted,
		fetcher:   fetcher,
		store:     store,
		writer:    writer,
		logger:    logger.With().Str("component", "Service").Logger(),
		now:       time.Now,
	}
}

// RunPass performs one full pass: load state, refresh every due resource,
// save the new state once and publish the feeds. A state that cannot be
// loaded or saved aborts the pass before any output is written.
func (s *Service) RunPass(ctx context.Context) (Summary, error) {
	prior, err := s.store.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load state: %w", err)
	}

	states, summary := s.Refresh(ctx, prior)

	if err := s.store.Save(ctx, states); err != nil {
		return summary, fmt.Errorf("failed to save state: %w", err)
	}

	written, err := s.Publish(states)
	summary.Written = written
	if err != nil {
		return summary, fmt.Errorf("failed to publish feeds: %w", err)
	}

	s.logger.Info().
		Int("checked", summary.Checked).
		Int("changed", summary.Changed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("written", summary.Written).
		Msg("Pass complete")

	return summary, nil
}

type refreshResult struct {
	state   sources.State
	fetched bool
}

// Refresh fetches every due resource concurrently and returns the
// reconciled state map. Each resource runs in its own goroutine and owns its
// own state, so results are collected by index without locking. States of
// slugs that are no longer configured are carried over untouched.
func (s *Service) Refresh(ctx context.Context, prior map[string]sources.State) (map[string]sources.State, Summary) {
	results := make([]refreshResult, len(s.resources))
	now := s.now()

	var wg sync.WaitGroup
	for i, res := range s.resources {
		prev, ok := prior[res.Slug]
		if !ok {
			prev = sources.NewState()
		}

		if !IsDue(res, prev, now) {
			s.logger.Debug().Str("slug", res.Slug).Msg("Not due")
			results[i] = refreshResult{state: prev}
			continue
		}

		wg.Add(1)
		go func(i int, res config.Resource, prev sources.State) {
			defer wg.Done()

			outcome := s.fetcher.Fetch(ctx, res, prev.ETag)
			results[i] = refreshResult{
				state:   sources.Reconcile(prev, outcome, s.now()),
				fetched: true,
			}
		}(i, res, prev)
	}
	wg.Wait()

	states := make(map[string]sources.State, len(prior)+len(s.resources))
	for slug, st := range prior {
		states[slug] = st
	}

	var summary Summary
	for i, res := range s.resources {
		r := results[i]
		states[res.Slug] = r.state

		if !r.fetched {
			summary.Skipped++
			continue
		}
		summary.Checked++
		if r.state.Error != "" {
			summary.Failed++
		}
		if prev, ok := prior[res.Slug]; !ok || !r.state.LastModified.Equal(prev.LastModified) {
			summary.Changed++
			s.logger.Info().Str("slug", res.Slug).Str("error", r.state.Error).Msg("Page changed")
		}
	}

	return states, summary
}

// Publish writes one feed per resource plus the index page and the OPML
// subscription list. Files whose content is already on disk are left alone.
// It returns how many files were rewritten.
func (s *Service) Publish(states map[string]sources.State) (int, error) {
	written := 0
	write := func(name string, data []byte) error {
		changed, err := s.writer.WriteIfChanged(name, data)
		if err != nil {
			return err
		}
		if changed {
			written++
		}
		return nil
	}

	index := make([]newsfeed.IndexEntry, 0, len(s.resources))
	for _, res := range s.resources {
		st, ok := states[res.Slug]
		if !ok {
			st = sources.NewState()
		}

		page := newsfeed.Page{
			Name:         res.Name,
			URL:          res.URL,
			LastModified: st.LastModified,
			Error:        st.Error,
			Items:        st.Items,
		}
		data, err := newsfeed.RenderRSS(page, newsfeed.Synthesize(page))
		if err != nil {
			return written, fmt.Errorf("failed to render feed for %s: %w", res.Slug, err)
		}
		if err := write(newsfeed.FeedFileName(res.Slug), data); err != nil {
			return written, err
		}

		index = append(index, newsfeed.IndexEntry{
			Slug: res.Slug,
			Name: res.Name,
			URL:  res.URL,
		})
	}

	html, err := newsfeed.RenderIndex(index)
	if err != nil {
		return written, fmt.Errorf("failed to render index: %w", err)
	}
	if err := write(IndexFile, html); err != nil {
		return written, err
	}

	opml, err := newsfeed.RenderOPML(index)
	if err != nil {
		return written, fmt.Errorf("failed to render OPML: %w", err)
	}
	if err := write(OPMLFile, opml); err != nil {
		return written, err
	}

	return written, nil
}
