// Package config provides configuration loading and management for llmanspec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the only supported config schema version.
const Version = 1

// Config represents the complete llmanspec configuration
type Config struct {
	Version     int               `yaml:"version"`
	Locale      string            `yaml:"locale"`
	Repo        RepoConfig        `yaml:"repo"`
	Git         GitConfig         `yaml:"git"`
	Output      OutputConfig      `yaml:"output"`
	Validation  ValidationConfig  `yaml:"validation"`
	Watch       WatchConfig       `yaml:"watch"`
	Frontmatter FrontmatterConfig `yaml:"frontmatter"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// RepoConfig configures the repository settings
type RepoConfig struct {
	// Path is the repository root path (auto-detected from git if empty)
	Path string `yaml:"path"`
	// SpecDir is the llmanspec tree, relative to Path
	SpecDir string `yaml:"spec_dir"`
}

// GitConfig configures staleness checks
type GitConfig struct {
	// BaseRef is compared against HEAD; origin/main then origin/master when empty
	BaseRef string `yaml:"base_ref"`
	// Timeout bounds each git invocation
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig configures written documents
type OutputConfig struct {
	// Pretty pads ISON table columns
	Pretty *bool `yaml:"pretty,omitempty"`
}

// ValidationConfig configures validate runs
type ValidationConfig struct {
	// Strict promotes warnings to errors
	Strict *bool `yaml:"strict,omitempty"`
}

// WatchConfig configures the watch command
type WatchConfig struct {
	DebounceDelay  time.Duration `yaml:"debounce_delay"`
	FileExtensions []string      `yaml:"file_extensions"`
}

// FrontmatterConfig overrides the header written into new specs
type FrontmatterConfig struct {
	ValidScope    []string `yaml:"valid_scope"`
	ValidCommands []string `yaml:"valid_commands"`
}

// MetricsConfig configures metrics output
type MetricsConfig struct {
	// Textfile receives Prometheus text exposition after each command
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	pretty, strict := true, false
	return &Config{
		Version: Version,
		Locale:  "en",
		Repo: RepoConfig{
			Path:    "", // Auto-detect
			SpecDir: "llmanspec",
		},
		Git: GitConfig{
			Timeout: 5 * time.Second,
		},
		Output:     OutputConfig{Pretty: &pretty},
		Validation: ValidationConfig{Strict: &strict},
		Watch: WatchConfig{
			DebounceDelay:  500 * time.Millisecond,
			FileExtensions: []string{".md"},
		},
	}
}

// PrettyOutput reports whether documents are written padded.
func (c *Config) PrettyOutput() bool {
	return c.Output.Pretty == nil || *c.Output.Pretty
}

// StrictValidation reports whether validate runs in strict mode.
func (c *Config) StrictValidation() bool {
	return c.Validation.Strict != nil && *c.Validation.Strict
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Version != Version {
		return fmt.Errorf("unsupported config version %d (expected %d)", c.Version, Version)
	}
	if c.Repo.SpecDir == "" {
		return fmt.Errorf("repo.spec_dir is required")
	}
	if filepath.IsAbs(c.Repo.SpecDir) || strings.HasPrefix(filepath.Clean(c.Repo.SpecDir), "..") {
		return fmt.Errorf("repo.spec_dir must be a relative path inside the repository")
	}
	if c.Git.Timeout <= 0 {
		return fmt.Errorf("git.timeout must be positive")
	}
	if c.Watch.DebounceDelay < 0 {
		return fmt.Errorf("watch.debounce_delay must not be negative")
	}
	for _, ext := range c.Watch.FileExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watch.file_extensions entry %q must start with a dot", ext)
		}
	}
	return nil
}

// NormalizeLocale maps locale spellings onto the supported set. Unknown
// values fall back to English.
func NormalizeLocale(locale string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")) {
	case "zh", "zh-hans", "zh-cn":
		return "zh-Hans"
	default:
		return "en"
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Locale != "" {
		c.Locale = NormalizeLocale(other.Locale)
	}

	// Repo
	if other.Repo.Path != "" {
		c.Repo.Path = other.Repo.Path
	}
	if other.Repo.SpecDir != "" {
		c.Repo.SpecDir = other.Repo.SpecDir
	}

	// Git
	if other.Git.BaseRef != "" {
		c.Git.BaseRef = other.Git.BaseRef
	}
	if other.Git.Timeout != 0 {
		c.Git.Timeout = other.Git.Timeout
	}

	// Pointers so a layer can switch a default off
	if other.Output.Pretty != nil {
		c.Output.Pretty = other.Output.Pretty
	}
	if other.Validation.Strict != nil {
		c.Validation.Strict = other.Validation.Strict
	}

	// Watch
	if other.Watch.DebounceDelay != 0 {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
	if len(other.Watch.FileExtensions) > 0 {
		c.Watch.FileExtensions = other.Watch.FileExtensions
	}

	// Frontmatter
	if len(other.Frontmatter.ValidScope) > 0 {
		c.Frontmatter.ValidScope = other.Frontmatter.ValidScope
	}
	if len(other.Frontmatter.ValidCommands) > 0 {
		c.Frontmatter.ValidCommands = other.Frontmatter.ValidCommands
	}

	// Metrics
	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
}
