package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mattn/go-sqlite3"
	"github.com/pevans/pagefeed/newsfeed"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps the snapshot in a SQLite database, one row per page.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath. A file
// that is not a usable database is moved aside to dbPath+".corrupt" and a
// fresh database is started in its place.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	logger = logger.With().Str("component", "SQLiteStore").Logger()

	store, err := openSQLiteStore(dbPath, logger)
	if err == nil {
		return store, nil
	}
	if !isCorrupt(err) {
		return nil, err
	}

	aside := dbPath + ".corrupt"
	logger.Warn().Err(err).Str("path", dbPath).Str("moved_to", aside).
		Msg("State database is corrupt, starting cold")
	if err := os.Rename(dbPath, aside); err != nil {
		return nil, fmt.Errorf("failed to move corrupt database aside: %w", err)
	}

	return openSQLiteStore(dbPath, logger)
}

func openSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// isCorrupt reports whether err means the file on disk is not a readable
// SQLite database.
func isCorrupt(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt
}

// initSchema creates the page_state table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS page_state (
		slug TEXT PRIMARY KEY,
		last_checked TEXT,
		last_modified TEXT,
		error TEXT,
		etag TEXT,
		items TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every stored page. Rows that cannot be decoded are skipped so a
// single bad row does not block the pass.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]State, error) {
	query := `
		SELECT slug, last_checked, last_modified, error, etag, items
		FROM page_state
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer rows.Close()

	states := map[string]State{}
	for rows.Next() {
		var slug, itemsJSON string
		var lastChecked, lastModified, errMsg, etag sql.NullString

		if err := rows.Scan(&slug, &lastChecked, &lastModified, &errMsg, &etag, &itemsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}

		state, err := scanState(lastChecked, lastModified, errMsg, etag, itemsJSON)
		if err != nil {
			s.logger.Warn().Err(err).Str("slug", slug).Msg("Skipping unreadable state row")
			continue
		}
		states[slug] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read state rows: %w", err)
	}

	return states, nil
}

// Save replaces all rows inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, states map[string]State) error {
	err := retry.Do(
		func() error { return s.save(ctx, states) },
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn().Err(err).Uint("attempt", n+1).Msg("Retrying state save")
		}),
	)
	if err != nil {
		return err
	}

	s.logger.Debug().Int("pages", len(states)).Msg("State saved")
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, states map[string]State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM page_state"); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}

	query := `
		INSERT INTO page_state (
			slug, last_checked, last_modified, error, etag, items
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	for slug, state := range states {
		items := state.Items
		if items == nil {
			items = []newsfeed.Item{}
		}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("failed to marshal items for %s: %w", slug, err)
		}

		_, err = tx.ExecContext(ctx, query,
			slug,
			formatTime(state.LastChecked),
			formatTime(state.LastModified),
			nullString(state.Error),
			nullString(state.ETag),
			string(itemsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert state for %s: %w", slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// scanState parses SQL row data into a State.
func scanState(lastChecked, lastModified, errMsg, etag sql.NullString, itemsJSON string) (State, error) {
	state := NewState()

	var err error
	if state.LastChecked, err = parseTime(lastChecked); err != nil {
		return State{}, fmt.Errorf("failed to parse last_checked: %w", err)
	}
	if state.LastModified, err = parseTime(lastModified); err != nil {
		return State{}, fmt.Errorf("failed to parse last_modified: %w", err)
	}
	if errMsg.Valid {
		state.Error = errMsg.String
	}
	if etag.Valid {
		state.ETag = etag.String
	}

	if err := json.Unmarshal([]byte(itemsJSON), &state.Items); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if state.Items == nil {
		state.Items = []newsfeed.Item{}
	}

	return state, nil
}

// Helper functions for time formatting
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Round(0).UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
