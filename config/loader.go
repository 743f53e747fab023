package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/llmanspec/staleness"
	"github.com/c360studio/llmanspec/tools/git"
)

const (
	// ProjectConfigFile is the project-level config, inside the spec dir
	ProjectConfigFile = "config.yaml"
	// ProjectConfigDir is the spec dir searched for when walking up
	ProjectConfigDir = "llmanspec"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/llmanspec"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger  *slog.Logger
	workDir string
	homeDir string
	getenv  func(string) string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithWorkDir sets the directory the project search starts from.
func WithWorkDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.workDir = dir
	}
}

// WithHomeDir sets the directory holding the user config.
func WithHomeDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.homeDir = dir
	}
}

// WithGetenv replaces environment lookups.
func WithGetenv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		l.getenv = getenv
	}
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger, getenv: os.Getenv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/llmanspec/config.yaml)
// 3. Project config (llmanspec/config.yaml in current or parent directories)
// 4. Environment variables (LLMANSPEC_BASE_REF)
// 5. Git root auto-detection for repo.path
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	config := DefaultConfig()

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		userConfig, err := readLayer(userConfigPath)
		switch {
		case err == nil:
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		case !errors.Is(err, os.ErrNotExist):
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath, projectRoot := l.findProjectConfig()
	if projectConfigPath != "" {
		projectConfig, err := readLayer(projectConfigPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		config.Merge(projectConfig)
	} else {
		l.logger.Debug("No project config found")
	}

	if ref := strings.TrimSpace(l.getenv(staleness.EnvBaseRef)); ref != "" {
		config.Git.BaseRef = ref
	}

	if config.Repo.Path == "" {
		switch {
		case projectRoot != "":
			config.Repo.Path = projectRoot
		default:
			config.Repo.Path = l.detectRoot(ctx)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return fmt.Errorf("cannot resolve home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// readLayer decodes one file onto a zero Config, so Merge only sees the
// keys the file sets.
func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var layer Config
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &layer, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.homeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

func (l *Loader) startDir() string {
	if l.workDir != "" {
		return l.workDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}

// findProjectConfig searches for llmanspec/config.yaml in the current and
// parent directories. It returns the file and the directory holding the
// llmanspec tree.
func (l *Loader) findProjectConfig() (string, string) {
	dir := l.startDir()
	if dir == "" {
		return "", ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigDir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ""
}

// detectRoot finds the git repository root, falling back to the start
// directory outside a repository.
func (l *Loader) detectRoot(ctx context.Context) string {
	dir := l.startDir()
	root, err := git.NewExecutor(dir).TopLevel(ctx)
	if err == nil {
		l.logger.Debug("Auto-detected git root", slog.String("path", root))
		return root
	}
	l.logger.Debug("Using current directory as repo root", slog.String("path", dir), slog.String("reason", err.Error()))
	return dir
}
