package newsfeed

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Writer publishes generated files into an output directory, leaving files
// whose content is already current untouched.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter creates a writer for the given output directory, creating the
// directory if it doesn't exist.
func NewWriter(dir string, logger zerolog.Logger) (*Writer, error) {
	// 0755: the output is meant to be served
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Writer{
		dir:    dir,
		logger: logger.With().Str("component", "Writer").Logger(),
	}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteIfChanged writes data to name inside the output directory unless the
// existing file already holds exactly those bytes. It reports whether a
// write happened.
func (w *Writer) WriteIfChanged(name string, data []byte) (bool, error) {
	path := filepath.Join(w.dir, name)

	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		w.logger.Debug().Str("file", name).Msg("Output unchanged, skipping write")
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := WriteAtomic(path, data, 0o644); err != nil {
		return false, err
	}

	w.logger.Info().Str("file", name).Int("bytes", len(data)).Msg("Output written")
	return true, nil
}

// WriteAtomic replaces path with data so that readers only ever see the old
// or the new content in full. The temporary file lives next to path so the
// final rename stays on one filesystem.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	// Remove the temporary file on every failure path
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	committed = true
	return nil
}
