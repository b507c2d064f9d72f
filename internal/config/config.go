// Package config loads and validates the typed YAML configuration.
//
// Two files live in the config directory: settings.yaml (transport,
// summarizer, highlighting, output, cache) and categories.yaml (the ordered
// category list). Unknown fields are rejected at decode time so a typo fails
// the run instead of silently changing behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultPrompt is used when a category carries no summary prompt of its own.
const DefaultPrompt = "Provide a brief summary of this email thread."

type GmailSettings struct {
	CredentialsFile  string `yaml:"credentials_file"`
	TokenFile        string `yaml:"token_file"`
	IncludeSpamTrash bool   `yaml:"include_spam_trash"`
}

type SummarizerSettings struct {
	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Concurrency    int    `yaml:"concurrency"`
}

// Timeout returns the per-invocation timeout as a duration.
func (s SummarizerSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type HighlightingSettings struct {
	ImportantSenders []string `yaml:"important_senders"`
}

type OutputSettings struct {
	Filename string `yaml:"filename"`
	// MaxThreadsPerCategory caps each category's thread list; nil means
	// unlimited.
	MaxThreadsPerCategory *int `yaml:"max_threads_per_category"`
}

type CacheSettings struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

type Settings struct {
	Gmail        GmailSettings        `yaml:"gmail"`
	Summarizer   SummarizerSettings   `yaml:"summarizer"`
	Highlighting HighlightingSettings `yaml:"highlighting"`
	Output       OutputSettings       `yaml:"output"`
	Cache        CacheSettings        `yaml:"cache"`
}

// Criteria is one category's predicate groups. A message matches if ANY
// populated group matches; within a group the pattern list is OR'd.
type Criteria struct {
	Labels          []string          `yaml:"labels"`
	FromPatterns    []string          `yaml:"from_patterns"`
	ToPatterns      []string          `yaml:"to_patterns"`
	SubjectPatterns []string          `yaml:"subject_patterns"`
	BodyPatterns    []string          `yaml:"body_patterns"`
	Headers         map[string]string `yaml:"headers"`
}

// IsEmpty reports whether every predicate group is empty, which makes the
// owning category a catch-all.
func (c Criteria) IsEmpty() bool {
	return len(c.Labels) == 0 &&
		len(c.FromPatterns) == 0 &&
		len(c.ToPatterns) == 0 &&
		len(c.SubjectPatterns) == 0 &&
		len(c.BodyPatterns) == 0 &&
		len(c.Headers) == 0
}

type Category struct {
	Name          string   `yaml:"name"`
	Order         int      `yaml:"order"`
	SummaryPrompt string   `yaml:"summary_prompt"`
	Criteria      Criteria `yaml:"criteria"`
}

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

// Config is the validated, read-only configuration for one run.
type Config struct {
	Settings   Settings
	Categories []Category // sorted by Order, evaluation order
}

// ImportantSenders returns the configured important-sender patterns.
func (c *Config) ImportantSenders() []string {
	return c.Settings.Highlighting.ImportantSenders
}

// CategoryByName returns the category with the given name, or nil.
func (c *Config) CategoryByName(name string) *Category {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

// Load reads settings.yaml and categories.yaml from dir, applies defaults for
// missing files or fields, and validates the result. Validation failures are
// fatal: the rest of the pipeline assumes a well-formed configuration.
func Load(dir string, log *zap.Logger) (*Config, error) {
	cfg := &Config{Settings: defaultSettings()}

	settingsPath := filepath.Join(dir, "settings.yaml")
	if err := decodeStrict(settingsPath, &cfg.Settings); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", settingsPath, err)
		}
		log.Warn("settings file not found, using defaults", zap.String("path", settingsPath))
	}

	categoriesPath := filepath.Join(dir, "categories.yaml")
	var cats categoriesFile
	if err := decodeStrict(categoriesPath, &cats); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", categoriesPath, err)
		}
		log.Warn("categories file not found, using catch-all default", zap.String("path", categoriesPath))
	}
	cfg.Categories = cats.Categories
	if len(cfg.Categories) == 0 {
		cfg.Categories = []Category{{
			Name:          "Everything",
			Order:         1,
			SummaryPrompt: DefaultPrompt,
		}}
	}
	applyDefaults(cfg)

	// Stable sort preserves file order between equal Order values.
	sort.SliceStable(cfg.Categories, func(i, j int) bool {
		return cfg.Categories[i].Order < cfg.Categories[j].Order
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultSettings() Settings {
	return Settings{
		Gmail: GmailSettings{
			CredentialsFile: "client_secret.json",
			TokenFile:       "token.json",
		},
		Summarizer: SummarizerSettings{
			Command:        "claude",
			TimeoutSeconds: 30,
			Concurrency:    5,
		},
		Output: OutputSettings{Filename: "inbox_summary.html"},
		Cache:  CacheSettings{MaxAgeDays: 30},
	}
}

func applyDefaults(cfg *Config) {
	s := &cfg.Settings
	if s.Gmail.CredentialsFile == "" {
		s.Gmail.CredentialsFile = "client_secret.json"
	}
	if s.Gmail.TokenFile == "" {
		s.Gmail.TokenFile = "token.json"
	}
	if s.Summarizer.Command == "" {
		s.Summarizer.Command = "claude"
	}
	if s.Summarizer.TimeoutSeconds == 0 {
		s.Summarizer.TimeoutSeconds = 30
	}
	if s.Summarizer.Concurrency == 0 {
		s.Summarizer.Concurrency = 5
	}
	if s.Output.Filename == "" {
		s.Output.Filename = "inbox_summary.html"
	}
	if s.Cache.MaxAgeDays == 0 {
		s.Cache.MaxAgeDays = 30
	}
	for i := range cfg.Categories {
		if cfg.Categories[i].Order == 0 {
			cfg.Categories[i].Order = 999
		}
		if strings.TrimSpace(cfg.Categories[i].SummaryPrompt) == "" {
			cfg.Categories[i].SummaryPrompt = DefaultPrompt
		}
	}
}

// decodeStrict decodes one YAML file rejecting unknown fields.
func decodeStrict(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	s := c.Settings.Summarizer
	if s.TimeoutSeconds < 1 || s.TimeoutSeconds > 600 {
		return fmt.Errorf("summarizer timeout_seconds must be between 1 and 600, got %d", s.TimeoutSeconds)
	}
	if s.Concurrency < 1 || s.Concurrency > 20 {
		return fmt.Errorf("summarizer concurrency must be between 1 and 20, got %d", s.Concurrency)
	}
	if m := c.Settings.Output.MaxThreadsPerCategory; m != nil && (*m < 1 || *m > 1000) {
		return fmt.Errorf("output max_threads_per_category must be between 1 and 1000, got %d", *m)
	}
	if c.Settings.Cache.MaxAgeDays < 1 {
		return fmt.Errorf("cache max_age_days must be positive, got %d", c.Settings.Cache.MaxAgeDays)
	}

	for _, p := range c.Settings.Highlighting.ImportantSenders {
		if err := checkPattern(p); err != nil {
			return fmt.Errorf("important sender pattern %q: %w", p, err)
		}
	}

	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("category name cannot be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate category name %q", name)
		}
		seen[name] = true
		if strings.TrimSpace(cat.SummaryPrompt) == "" {
			return fmt.Errorf("category %q: summary prompt cannot be empty", name)
		}
		if err := validateCriteria(cat.Criteria); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
	}
	return nil
}

func validateCriteria(cr Criteria) error {
	groups := []struct {
		name     string
		patterns []string
	}{
		{"from_patterns", cr.FromPatterns},
		{"to_patterns", cr.ToPatterns},
		{"subject_patterns", cr.SubjectPatterns},
		{"body_patterns", cr.BodyPatterns},
	}
	for _, g := range groups {
		for _, p := range g.patterns {
			if err := checkPattern(p); err != nil {
				return fmt.Errorf("%s pattern %q: %w", g.name, p, err)
			}
		}
	}
	for header, p := range cr.Headers {
		if err := checkPattern(p); err != nil {
			return fmt.Errorf("header %q pattern %q: %w", header, p, err)
		}
	}
	return nil
}

func checkPattern(p string) error {
	_, err := regexp.Compile(p)
	return err
}
