package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pevans/pagefeed/scraper"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the YAML configuration file.
type FileConfig struct {
	OutputDir    string                `yaml:"output_dir"`
	StateFile    string                `yaml:"state_file"`
	StateBackend string                `yaml:"state_backend" validate:"omitempty,oneof=json sqlite"`
	Timeout      *Duration             `yaml:"timeout" validate:"omitempty,gt=0"`
	Log          LogConfig             `yaml:"log"`
	Pages        map[string]PageConfig `yaml:"pages" validate:"-"`
}

// PageConfig is one entry of the pages mapping.
type PageConfig struct {
	Name     string            `yaml:"name" validate:"required"`
	URL      string            `yaml:"url" validate:"required,url,httpurl"`
	Body     *string           `yaml:"body"`
	Headers  map[string]string `yaml:"headers"`
	Interval *Duration         `yaml:"interval" validate:"omitempty,gte=0"`
	Cooldown Duration          `yaml:"cooldown" validate:"gte=0"`
	Strip    string            `yaml:"strip"`
	Mode     string            `yaml:"mode" validate:"omitempty,oneof=text html multihtml json"`

	ItemSelector  string `yaml:"item_selector"`
	TitleSelector string `yaml:"title_selector"`
	BodySelector  string `yaml:"body_selector"`
	LinkSelector  string `yaml:"link_selector"`
	Filter        string `yaml:"filter"`
}

// Load reads, validates and resolves the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	fc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	return fc.resolve(path)
}

// Parse decodes and validates configuration file contents. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (*FileConfig, error) {
	var fc FileConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&fc); err != nil {
		return nil, err
	}

	return &fc, nil
}

func (fc *FileConfig) resolve(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	cfg := &Config{
		Path:         absPath,
		OutputDir:    resolvePath(baseDir, valueOr(fc.OutputDir, DefaultOutputDir)),
		StateFile:    resolvePath(baseDir, valueOr(fc.StateFile, DefaultStateFile)),
		StateBackend: valueOr(fc.StateBackend, DefaultStateBackend),
		Timeout:      DefaultTimeout,
		Log: LogConfig{
			Level:      valueOr(fc.Log.Level, DefaultLogLevel),
			MaxSizeMB:  fc.Log.MaxSizeMB,
			MaxBackups: fc.Log.MaxBackups,
		},
	}
	if fc.Timeout != nil {
		cfg.Timeout = time.Duration(*fc.Timeout)
	}
	if fc.Log.File != "" {
		cfg.Log.File = resolvePath(baseDir, fc.Log.File)
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = DefaultLogBackups
	}

	slugs := make([]string, 0, len(fc.Pages))
	for slug := range fc.Pages {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		cfg.Resources = append(cfg.Resources, fc.Pages[slug].resource(slug))
	}

	return cfg, nil
}

func (p PageConfig) resource(slug string) Resource {
	interval := DefaultInterval
	if p.Interval != nil {
		interval = time.Duration(*p.Interval)
	}

	return Resource{
		Slug:     slug,
		Name:     p.Name,
		URL:      p.URL,
		Body:     p.Body,
		Headers:  p.Headers,
		Interval: interval,
		Cooldown: time.Duration(p.Cooldown),
		Strip:    p.Strip,
		Mode:     p.mode(),
	}
}

func (p PageConfig) mode() scraper.Mode {
	selectors := scraper.Selectors{
		Item:  p.ItemSelector,
		Title: p.TitleSelector,
		Body:  p.BodySelector,
		Link:  p.LinkSelector,
	}

	switch p.Mode {
	case scraper.ModeHTML:
		return scraper.HTML{Selectors: selectors}
	case scraper.ModeMultiHTML:
		return scraper.MultiHTML{Selectors: selectors}
	case scraper.ModeJSON:
		return scraper.JSON{Filter: p.Filter}
	default:
		return scraper.Text{}
	}
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
