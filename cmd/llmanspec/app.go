package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/c360studio/llmanspec/archive"
	"github.com/c360studio/llmanspec/authoring"
	"github.com/c360studio/llmanspec/config"
	"github.com/c360studio/llmanspec/metrics"
	"github.com/c360studio/llmanspec/migrate"
	"github.com/c360studio/llmanspec/staleness"
	"github.com/c360studio/llmanspec/tools/git"
	"github.com/c360studio/llmanspec/workflow"
	"github.com/c360studio/llmanspec/workflow/validation"
)

// App wires configuration, the project tree, and the services the
// commands run against.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	manager     *workflow.Manager
	git         *git.Executor
	evaluator   *staleness.Evaluator
	metricsFile string
}

// NewApp loads the layered configuration and builds the app for the
// project containing flags.repoPath.
func NewApp(ctx context.Context, flags *globalFlags, logOut io.Writer) (*App, error) {
	logger := newLogger(flags.logLevel, logOut)
	slog.SetDefault(logger)

	var opts []config.LoaderOption
	if flags.repoPath != "" {
		abs, err := filepath.Abs(flags.repoPath)
		if err != nil {
			return nil, fmt.Errorf("resolve repo path: %w", err)
		}
		opts = append(opts, config.WithWorkDir(abs))
	}
	cfg, err := config.NewLoader(logger, opts...).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newAppFromConfig(cfg, flags.metricsFile, logger), nil
}

func newAppFromConfig(cfg *config.Config, metricsFile string, logger *slog.Logger) *App {
	executor := git.NewExecutor(cfg.Repo.Path)

	evaluator := staleness.NewEvaluator(executor, cfg.Repo.Path, logger)
	evaluator.BaseRef = cfg.Git.BaseRef
	evaluator.Timeout = cfg.Git.Timeout

	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}

	logger.Debug("Project resolved",
		"repo_path", cfg.Repo.Path,
		"spec_dir", cfg.Repo.SpecDir,
		"base_ref", cfg.Git.BaseRef)

	return &App{
		cfg:         cfg,
		logger:      logger,
		manager:     workflow.NewManagerWithDir(cfg.Repo.Path, cfg.Repo.SpecDir),
		git:         executor,
		evaluator:   evaluator,
		metricsFile: metricsFile,
	}
}

func newLogger(level string, out io.Writer) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
}

// Service returns the validation service for the project.
func (a *App) Service() *validation.Service {
	return validation.NewService(a.manager, a.evaluator, validation.WithLogger(a.logger))
}

// Archiver returns an archiver gated by strict validation and staleness.
func (a *App) Archiver() *archive.Archiver {
	return archive.NewArchiver(a.manager, validation.NewArchiveGate(a.evaluator),
		archive.WithLogger(a.logger),
		archive.WithFrontmatterDefaults(a.cfg.Frontmatter.ValidScope, a.cfg.Frontmatter.ValidCommands))
}

// Editor returns the authoring editor. pretty overrides the configured
// output style when non-nil.
func (a *App) Editor(pretty *bool) *authoring.Editor {
	return authoring.NewEditor(a.manager,
		authoring.WithPretty(a.pretty(pretty)),
		authoring.WithFrontmatterDefaults(a.cfg.Frontmatter.ValidScope, a.cfg.Frontmatter.ValidCommands),
		authoring.WithLogger(a.logger))
}

// Migrator returns the legacy migrator.
func (a *App) Migrator(pretty *bool) *migrate.Migrator {
	return migrate.New(a.manager, migrate.WithPretty(a.pretty(pretty)), migrate.WithLogger(a.logger))
}

func (a *App) pretty(override *bool) bool {
	if override != nil {
		return *override
	}
	return a.cfg.PrettyOutput()
}

// Close writes the metrics textfile when one is configured.
func (a *App) Close() error {
	if a.metricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.metricsFile); err != nil {
		return err
	}
	a.logger.Debug("Wrote metrics", "path", a.metricsFile)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
