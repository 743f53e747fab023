package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/llmanspec/staleness"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
	if cfg.Repo.SpecDir != "llmanspec" {
		t.Errorf("expected spec dir llmanspec, got %s", cfg.Repo.SpecDir)
	}
	if cfg.Git.Timeout != 5*time.Second {
		t.Errorf("expected git timeout 5s, got %v", cfg.Git.Timeout)
	}
	if !cfg.PrettyOutput() {
		t.Error("expected pretty output by default")
	}
	if cfg.StrictValidation() {
		t.Error("expected lenient validation by default")
	}
	if cfg.Watch.DebounceDelay != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %v", cfg.Watch.DebounceDelay)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unsupported version",
			modify:  func(c *Config) { c.Version = 2 },
			wantErr: true,
		},
		{
			name:    "missing spec dir",
			modify:  func(c *Config) { c.Repo.SpecDir = "" },
			wantErr: true,
		},
		{
			name:    "spec dir escapes repo",
			modify:  func(c *Config) { c.Repo.SpecDir = "../specs" },
			wantErr: true,
		},
		{
			name:    "zero git timeout",
			modify:  func(c *Config) { c.Git.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "extension without dot",
			modify:  func(c *Config) { c.Watch.FileExtensions = []string{"md"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
version: 1
locale: zh_CN
repo:
  path: "/test/path"
git:
  base_ref: origin/develop
  timeout: 10s
output:
  pretty: false
validation:
  strict: true
watch:
  debounce_delay: 250ms
  file_extensions: [".md", ".markdown"]
frontmatter:
  valid_scope: ["internal/"]
metrics:
  textfile: /tmp/llmanspec.prom
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Repo.Path != "/test/path" {
		t.Errorf("expected repo path /test/path, got %s", cfg.Repo.Path)
	}
	if cfg.Repo.SpecDir != "llmanspec" {
		t.Errorf("expected default spec dir to survive, got %s", cfg.Repo.SpecDir)
	}
	if cfg.Git.BaseRef != "origin/develop" || cfg.Git.Timeout != 10*time.Second {
		t.Errorf("unexpected git config %+v", cfg.Git)
	}
	if cfg.PrettyOutput() {
		t.Error("expected pretty output to be switched off")
	}
	if !cfg.StrictValidation() {
		t.Error("expected strict validation")
	}
	if cfg.Watch.DebounceDelay != 250*time.Millisecond || len(cfg.Watch.FileExtensions) != 2 {
		t.Errorf("unexpected watch config %+v", cfg.Watch)
	}
	if cfg.Metrics.Textfile != "/tmp/llmanspec.prom" {
		t.Errorf("unexpected metrics textfile %s", cfg.Metrics.Textfile)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	off := false
	override := &Config{
		Locale: "zh-hans",
		Repo: RepoConfig{
			Path: "/override/path",
		},
		Output: OutputConfig{Pretty: &off},
	}

	base.Merge(override)

	if base.Repo.Path != "/override/path" {
		t.Errorf("expected repo path /override/path, got %s", base.Repo.Path)
	}
	// SpecDir should remain from base since override didn't set it
	if base.Repo.SpecDir != "llmanspec" {
		t.Errorf("expected spec dir to remain default, got %s", base.Repo.SpecDir)
	}
	if base.Locale != "zh-Hans" {
		t.Errorf("expected normalized locale zh-Hans, got %s", base.Locale)
	}
	if base.PrettyOutput() {
		t.Error("expected pretty output to be switched off")
	}
	if base.Git.Timeout != 5*time.Second {
		t.Errorf("expected timeout to remain default, got %v", base.Git.Timeout)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Git.BaseRef = "origin/trunk"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Git.BaseRef != "origin/trunk" {
		t.Errorf("expected base ref origin/trunk, got %s", loaded.Git.BaseRef)
	}
	if loaded.Git.Timeout != 5*time.Second {
		t.Errorf("expected timeout to round-trip, got %v", loaded.Git.Timeout)
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderPrecedence(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "internal", "pkg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, filepath.Join(home, UserConfigDir, UserConfigFile),
		"git:\n  timeout: 9s\n  base_ref: origin/user\nvalidation:\n  strict: true\n")
	writeConfig(t, filepath.Join(project, ProjectConfigDir, ProjectConfigFile),
		"git:\n  base_ref: origin/project\noutput:\n  pretty: false\n")

	env := map[string]string{}
	loader := NewLoader(nil,
		WithHomeDir(home),
		WithWorkDir(nested),
		WithGetenv(func(k string) string { return env[k] }),
	)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Git.Timeout != 9*time.Second {
		t.Errorf("expected user timeout 9s to survive project layer, got %v", cfg.Git.Timeout)
	}
	if cfg.Git.BaseRef != "origin/project" {
		t.Errorf("expected project base ref, got %s", cfg.Git.BaseRef)
	}
	if !cfg.StrictValidation() || cfg.PrettyOutput() {
		t.Errorf("unexpected flags strict=%v pretty=%v", cfg.StrictValidation(), cfg.PrettyOutput())
	}
	if cfg.Repo.Path != project {
		t.Errorf("expected repo path %s, got %s", project, cfg.Repo.Path)
	}

	env[staleness.EnvBaseRef] = "   "
	cfg, err = loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Git.BaseRef == "" {
		t.Errorf("blank env base ref should not clear the project value")
	}

	env[staleness.EnvBaseRef] = " origin/env "
	cfg, err = loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Git.BaseRef != "origin/env" {
		t.Errorf("expected env base ref, got %s", cfg.Git.BaseRef)
	}
}

func TestLoaderInvalidProjectConfig(t *testing.T) {
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ProjectConfigDir, ProjectConfigFile), "version: 3\n")

	_, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(project)).Load(context.Background())
	if err == nil {
		t.Fatal("expected unsupported version to fail")
	}
}

func TestLoaderWithoutProject(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(dir)).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo.Path == "" {
		t.Error("expected repo path to fall back to a directory")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	loader := NewLoader(nil, WithHomeDir(home))
	if err := loader.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	if _, err := LoadFromFile(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Errorf("expected readable user config: %v", err)
	}
}

func TestNormalizeLocale(t *testing.T) {
	for in, want := range map[string]string{"en": "en", "zh_CN": "zh-Hans", "ZH-HANS": "zh-Hans", "fr": "en", "": "en"} {
		if got := NormalizeLocale(in); got != want {
			t.Errorf("NormalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
