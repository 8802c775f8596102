package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/pagefeed/scraper"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the configuration file leaves a setting out.
const (
	DefaultOutputDir    = "feeds"
	DefaultStateFile    = "state.json"
	DefaultStateBackend = BackendJSON
	DefaultTimeout      = 60 * time.Second
	DefaultInterval     = time.Hour
	DefaultLogLevel     = "info"
	DefaultLogMaxSizeMB = 10
	DefaultLogBackups   = 3
)

// State backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

var (
	// ErrNoPages is returned when a configuration file declares no pages.
	ErrNoPages = errors.New("no pages configured")
	// ErrInvalidSlug is returned when a page key cannot be used as a file
	// name.
	ErrInvalidSlug = errors.New("invalid slug")
)

// Config is a loaded and validated configuration. All paths are resolved
// against the directory of the configuration file.
type Config struct {
	Path         string
	OutputDir    string
	StateFile    string
	StateBackend string
	Timeout      time.Duration
	Log          LogConfig
	// Resources are ordered by slug.
	Resources []Resource
}

// LogConfig controls where log lines go.
type LogConfig struct {
	// File enables a rotating log file in addition to stderr.
	File       string `yaml:"file"`
	Level      string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

// Resource is one monitored page.
type Resource struct {
	Slug string
	Name string
	URL  string
	// Body is the POST payload. Nil means GET.
	Body     *string
	Headers  map[string]string
	Interval time.Duration
	Cooldown time.Duration
	// Strip is a regular expression whose matches are removed from the
	// document before extraction.
	Strip string
	Mode  scraper.Mode
}

// Method returns the HTTP method used to fetch the resource.
func (r Resource) Method() string {
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// Duration is a time.Duration that reads from YAML using ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration extends time.ParseDuration to support 'd' (days) and 'w'
// (weeks). The count before 'd' or 'w' must be a whole number; units cannot
// be mixed with them.
func ParseDuration(s string) (time.Duration, error) {
	// Try standard parsing first
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	// Handle days (d) and weeks (w)
	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration: %s", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return time.Duration(n) * unit, nil
}
