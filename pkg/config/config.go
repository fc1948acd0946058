// Package config loads stigdiff settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory
// when no path is given.
const DefaultPath = ".stigdiff.yaml"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output formats understood by the report package.
var validFormats = map[string]bool{
	"text":     true,
	"json":     true,
	"yaml":     true,
	"markdown": true,
}

// Config holds every tunable setting. Command-line flags override it.
type Config struct {
	// BenchmarkFilter is a substring every benchmark filename must contain
	// during folder scans.
	BenchmarkFilter string `yaml:"benchmark_filter"`

	// ExcludePatterns are filename substrings that exclude converted files.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// MaxSnippet bounds converted snippets in rule details, in characters.
	MaxSnippet int `yaml:"max_snippet"`

	// Concurrency is the number of benchmark pairs compared at once.
	Concurrency int `yaml:"concurrency"`

	// Format is the default report format.
	Format string `yaml:"format"`

	// ShowMatched includes matched ids in text reports.
	ShowMatched bool `yaml:"show_matched"`

	// WatchDebounce is how long watch mode waits for writes to settle,
	// e.g. "500ms".
	WatchDebounce string `yaml:"watch_debounce"`

	// ProductAliases maps derived product names to the names a converter
	// release actually writes, e.g. WindowsClient for Windows.
	ProductAliases map[string]string `yaml:"product_aliases,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BenchmarkFilter: "_STIG_",
		ExcludePatterns: []string{".org.default"},
		MaxSnippet:      4000,
		Concurrency:     4,
		Format:          "text",
		ShowMatched:     false,
		WatchDebounce:   "500ms",
	}
}

// Load reads the YAML file at path over the defaults. An empty path reads
// DefaultPath if it exists and otherwise returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.MaxSnippet <= 0 {
		problems = append(problems, "max_snippet must be positive")
	}
	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if !validFormats[strings.ToLower(c.Format)] {
		problems = append(problems, fmt.Sprintf("format %q is not one of text, json, yaml, markdown", c.Format))
	}
	if _, err := c.Debounce(); err != nil {
		problems = append(problems, fmt.Sprintf("watch_debounce: %v", err))
	}
	for i, pattern := range c.ExcludePatterns {
		if strings.TrimSpace(pattern) == "" {
			problems = append(problems, fmt.Sprintf("exclude_patterns[%d] is empty", i))
		}
	}
	for from, to := range c.ProductAliases {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			problems = append(problems, "product_aliases entries must have non-empty names")
			break
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Debounce parses WatchDebounce. An empty value means no delay.
func (c *Config) Debounce() (time.Duration, error) {
	if strings.TrimSpace(c.WatchDebounce) == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(strings.TrimSpace(c.WatchDebounce))
	if err != nil {
		return 0, err
	}
	if duration < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return duration, nil
}

// Alias returns the configured replacement for a product name, or the name
// itself.
func (c *Config) Alias(product string) string {
	for from, to := range c.ProductAliases {
		if strings.EqualFold(from, product) {
			return to
		}
	}
	return product
}
