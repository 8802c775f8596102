package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/pevans/pagefeed/newsfeed"
	"github.com/rs/zerolog"
)

// Store persists the state of every page as a single snapshot.
type Store interface {
	// Load returns the last committed snapshot. A store that has never
	// been saved returns an empty map.
	Load(ctx context.Context) (map[string]State, error)
	// Save replaces the snapshot. Either the whole new snapshot is
	// committed or the previous one stays in place.
	Save(ctx context.Context, states map[string]State) error
	Close() error
}

// FileStore keeps the snapshot in one JSON file.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store backed by the JSON file at path. The file is
// not touched until Load or Save.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "FileStore").Logger(),
	}
}

// Load reads the snapshot. A missing or unparsable file is a cold start.
// Any other read failure is returned so an existing snapshot is never
// silently replaced.
func (f *FileStore) Load(_ context.Context) (map[string]State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.logger.Info().Str("path", f.path).Msg("No state file, starting cold")
		return map[string]State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var states map[string]State
	if err := json.Unmarshal(data, &states); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("Failed to parse state file, starting cold")
		return map[string]State{}, nil
	}
	if states == nil {
		states = map[string]State{}
	}

	f.logger.Debug().Str("path", f.path).Int("pages", len(states)).Msg("State loaded")
	return states, nil
}

// Save writes the snapshot through a temporary file and a rename.
func (f *FileStore) Save(ctx context.Context, states map[string]State) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	err = retry.Do(
		func() error {
			// 0600: owner-only read/write
			return newsfeed.WriteAtomic(f.path, data, 0o600)
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn().Err(err).Uint("attempt", n+1).Msg("Retrying state write")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	f.logger.Debug().Str("path", f.path).Int("pages", len(states)).Msg("State saved")
	return nil
}

// Close is a no-op; the file is not held open.
func (f *FileStore) Close() error {
	return nil
}
