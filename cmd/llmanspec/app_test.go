package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/llmanspec/archive"
	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/workflow"
	"github.com/c360studio/llmanspec/workflow/validation"
)

// runCLI executes the command tree against repo and returns stdout.
func runCLI(t *testing.T, repo string, args ...string) (string, error) {
	t.Helper()
	cmd, closeApp := rootCmd(io.Discard)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--repo", repo}, args...))
	err := cmd.ExecuteContext(context.Background())
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return out.String(), err
}

func mustRun(t *testing.T, repo string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, repo, args...)
	require.NoError(t, err, "llmanspec %s\n%s", strings.Join(args, " "), out)
	return out
}

// newProject isolates the user config and base ref, and initializes a
// project in a temp dir.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LLMANSPEC_BASE_REF", "")
	dir := t.TempDir()
	mustRun(t, dir, "init")
	return dir
}

func authorAuthSpec(t *testing.T, dir string) {
	t.Helper()
	mustRun(t, dir, "spec", "init", "auth", "--purpose", "Authenticate users.")
	mustRun(t, dir, "spec", "add-requirement", "auth",
		"--req-id", "login", "--title", "Login", "--statement", "Users MUST log in with a password.")
	mustRun(t, dir, "spec", "add-scenario", "auth",
		"--req-id", "login", "--id", "wrong-password", "--when", "a wrong password is entered", "--then", "login is refused")
}

func authorSessionDelta(t *testing.T, dir string) {
	t.Helper()
	mustRun(t, dir, "delta", "init", "add-session", "auth")
	mustRun(t, dir, "delta", "add-op", "add-session", "auth",
		"--op", "add_requirement", "--req-id", "session", "--title", "Session", "--statement", "The system SHALL expire idle sessions.")
	mustRun(t, dir, "delta", "add-scenario", "add-session", "auth",
		"--req-id", "session", "--id", "idle", "--when", "a session is idle for an hour", "--then", "it expires")
}

func TestVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	assert.Contains(t, out, "llmanspec version "+Version)
}

func TestInit(t *testing.T) {
	dir := newProject(t)

	for _, sub := range []string{"specs", "changes", filepath.Join("changes", "archive")} {
		info, err := os.Stat(filepath.Join(dir, "llmanspec", sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	_, err := os.Stat(filepath.Join(dir, "llmanspec", "config.yaml"))
	require.NoError(t, err)

	out := mustRun(t, dir, "init")
	assert.Contains(t, out, "Config already present")
}

func TestSpecAuthoringAndShow(t *testing.T) {
	dir := newProject(t)
	authorAuthSpec(t, dir)

	out := mustRun(t, dir, "validate", "auth")
	assert.Contains(t, out, "✓ spec auth")

	out = mustRun(t, dir, "show", "auth", "--req", "login")
	var view specView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Authenticate users.", view.Meta.Purpose)
	require.Len(t, view.Requirements, 1)
	var ids []string
	for _, sc := range view.Scenarios {
		ids = append(ids, sc.ID)
	}
	assert.Equal(t, []string{"baseline", "wrong-password"}, ids)

	out = mustRun(t, dir, "show", "auth", "--requirements")
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Empty(t, view.Scenarios)

	_, err := runCLI(t, dir, "show", "auth", "--req", "logn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean: login?")

	out = mustRun(t, dir, "list", "--specs", "--json")
	var listed struct {
		Specs []workflow.SpecSummary `json:"specs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Specs, 1)
	assert.Equal(t, 1, listed.Specs[0].RequirementCount)

	out = mustRun(t, dir, "list", "--specs")
	assert.Contains(t, out, "auth")
}

func TestChangeNew(t *testing.T) {
	dir := newProject(t)

	out := mustRun(t, dir, "change", "new", "add-session", "--why", "Sessions never expire.", "--section", "Schema")
	assert.Contains(t, out, "Created llmanspec/changes/add-session/proposal.md")
	assert.Contains(t, out, "tasks.md")

	_, err := runCLI(t, dir, "change", "new", "add-session")
	require.ErrorIs(t, err, workflow.ErrChangeExists)

	authorAuthSpec(t, dir)
	authorSessionDelta(t, dir)
	out = mustRun(t, dir, "list", "--json")
	var listed struct {
		Changes []workflow.ChangeSummary `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Changes, 1)
	assert.True(t, listed.Changes[0].HasProposal)
	assert.Equal(t, 1, listed.Changes[0].TotalTasks)
	assert.Equal(t, 1, listed.Changes[0].DeltaCount)
}

func TestSpecAuthoringErrors(t *testing.T) {
	dir := newProject(t)
	mustRun(t, dir, "spec", "init", "auth")

	_, err := runCLI(t, dir, "spec", "init", "auth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = runCLI(t, dir, "spec", "add-requirement", "auth",
		"--req-id", "soft", "--title", "Soft", "--statement", "It should work.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MUST or SHALL")

	_, err = runCLI(t, dir, "spec", "add-requirement", "../escape", "--req-id", "x")
	require.Error(t, err)
}

func TestValidateFailure(t *testing.T) {
	dir := newProject(t)
	specPath := filepath.Join(dir, "llmanspec", "specs", "broken", "spec.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(specPath), 0o755))
	require.NoError(t, os.WriteFile(specPath, []byte("# no frontmatter\n"), 0o644))

	out, err := runCLI(t, dir, "validate", "--specs", "--json")
	require.ErrorIs(t, err, errValidationFailed)

	var report validation.BulkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, validation.ReportVersion, report.Version)
	require.Len(t, report.Items, 1)
	assert.False(t, report.Items[0].Valid)

	_, err = runCLI(t, dir, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to validate")

	_, err = runCLI(t, dir, "validate", "brokn")
	require.ErrorIs(t, err, validation.ErrUnknownItem)
}

func TestDeltaAndArchive(t *testing.T) {
	dir := newProject(t)
	authorAuthSpec(t, dir)
	authorSessionDelta(t, dir)

	out := mustRun(t, dir, "validate", "add-session")
	assert.Contains(t, out, "✓ change add-session")

	out = mustRun(t, dir, "show", "add-session")
	var view changeView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Deltas, 1)
	assert.Equal(t, document.OpAdd, view.Deltas[0].Ops[0].Op)

	out = mustRun(t, dir, "list")
	assert.Contains(t, out, "add-session")

	_, err := runCLI(t, dir, "delta", "add-op", "add-session", "auth", "--op", "rename_requirement", "--req-id", "login", "--from", "Login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--to")

	out = mustRun(t, dir, "archive", "add-session", "--dry-run", "--force")
	assert.Contains(t, out, "Would update spec auth: +1")
	assert.Contains(t, out, "Dry run")

	// Outside a git repository the staleness gate cannot pass.
	out, err = runCLI(t, dir, "archive", "add-session", "--json")
	require.ErrorIs(t, err, validation.ErrRebuiltInvalid)
	var failed struct {
		Updates []struct {
			Spec   string `json:"spec"`
			Error  string `json:"error"`
			Counts struct {
				Added int `json:"added"`
			} `json:"counts"`
		} `json:"updates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &failed))
	require.Len(t, failed.Updates, 1)
	assert.Equal(t, 1, failed.Updates[0].Counts.Added)
	assert.Contains(t, failed.Updates[0].Error, "failed validation")

	out = mustRun(t, dir, "archive", "add-session", "--force")
	assert.Contains(t, out, "Archived change add-session")

	m := workflow.NewManager(dir)
	assert.False(t, m.ChangeExists("add-session"))
	archived, err := m.ArchivedChangeIDs()
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.True(t, strings.HasSuffix(archived[0], "-add-session"))

	content, err := m.ReadSpec("auth")
	require.NoError(t, err)
	spec, err := document.ParseSpecBody(document.ParseFrontmatter(content).Body, "auth")
	require.NoError(t, err)
	assert.NotNil(t, spec.Requirement("session"))
}

func TestArchiveGatePassesInCleanRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := newProject(t)
	authorAuthSpec(t, dir)
	authorSessionDelta(t, dir)

	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v\n%s", args, out)
	}
	git("init", "-b", "main")
	git("config", "user.email", "test@example.com")
	git("config", "user.name", "Test User")
	git("config", "commit.gpgsign", "false")
	git("add", ".")
	git("commit", "-m", "feat: auth spec and session change")

	t.Setenv("LLMANSPEC_BASE_REF", "HEAD")
	out := mustRun(t, dir, "archive", "add-session", "--json")

	var report struct {
		Totals struct {
			Added int `json:"added"`
		} `json:"totals"`
		DryRun bool `json:"dryRun"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Totals.Added)
	assert.False(t, report.DryRun)
}

func TestArchiveFreezeThaw(t *testing.T) {
	dir := newProject(t)
	authorAuthSpec(t, dir)
	authorSessionDelta(t, dir)
	mustRun(t, dir, "archive", "add-session", "--force")

	m := workflow.NewManager(dir)
	archived, err := m.ArchivedChangeIDs()
	require.NoError(t, err)
	require.Len(t, archived, 1)

	out := mustRun(t, dir, "archive", "freeze", "--dry-run")
	assert.Contains(t, out, "would freeze 1 archived change(s)")
	assert.Contains(t, out, archived[0])

	out = mustRun(t, dir, "archive", "freeze", "--keep-recent", "1")
	assert.Contains(t, out, "No archived changes selected")

	_, err = runCLI(t, dir, "archive", "freeze", "--before", "01/02/2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")

	out = mustRun(t, dir, "archive", "freeze")
	assert.Contains(t, out, "Froze 1 archived change(s) into llmanspec/changes/archive/"+archive.FreezeFile)
	left, err := m.ArchivedChangeIDs()
	require.NoError(t, err)
	assert.Empty(t, left)

	dest := t.TempDir()
	out = mustRun(t, dir, "archive", "thaw", "--change", archived[0], "--dest", dest, "--json")
	var thawed archive.ThawReport
	require.NoError(t, json.Unmarshal([]byte(out), &thawed))
	assert.Equal(t, []string{archived[0]}, thawed.Changes)
	assert.FileExists(t, filepath.Join(dest, archived[0], "specs", "auth", "spec.md"))
}

func TestListSortAndShowDeltasOnly(t *testing.T) {
	dir := newProject(t)
	mustRun(t, dir, "change", "new", "b-change", "--title", "Change: Bee")
	mustRun(t, dir, "change", "new", "a-change")

	older := time.Now().Add(-time.Hour)
	require.NoError(t, filepath.WalkDir(filepath.Join(dir, "llmanspec", "changes", "a-change"), func(p string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(p, older, older)
	}))

	names := func(args ...string) []string {
		out := mustRun(t, dir, append([]string{"list", "--json"}, args...)...)
		var listed struct {
			Changes []workflow.ChangeSummary `json:"changes"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &listed))
		var ids []string
		for _, c := range listed.Changes {
			ids = append(ids, c.ID)
		}
		return ids
	}
	assert.Equal(t, []string{"b-change", "a-change"}, names())
	assert.Equal(t, []string{"a-change", "b-change"}, names("--sort", "name"))

	_, err := runCLI(t, dir, "list", "--sort", "size")
	require.Error(t, err)

	authorAuthSpec(t, dir)
	mustRun(t, dir, "delta", "init", "b-change", "auth")
	mustRun(t, dir, "delta", "add-op", "b-change", "auth",
		"--op", "remove_requirement", "--req-id", "login", "--name", "Login")

	out := mustRun(t, dir, "show", "b-change")
	var view changeView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Bee", view.Title)
	assert.Equal(t, 1, view.DeltaCount)

	out = mustRun(t, dir, "show", "b-change", "--deltas-only")
	var deltas []deltaView
	require.NoError(t, json.Unmarshal([]byte(out), &deltas))
	require.Len(t, deltas, 1)
	assert.Equal(t, "auth", deltas[0].Spec)
}

func TestMigrateCommand(t *testing.T) {
	dir := newProject(t)
	specPath := filepath.Join(dir, "llmanspec", "specs", "legacy", "spec.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(specPath), 0o755))
	legacy := `---
llman_spec_valid_scope: src
llman_spec_valid_commands: go test ./...
llman_spec_evidence: ci
---

# Legacy

## Purpose
Keep old behavior.

## Requirements
### Requirement: Old
The system MUST keep working.

#### Scenario: works
- **WHEN** used
- **THEN** it works
`
	require.NoError(t, os.WriteFile(specPath, []byte(legacy), 0o644))

	out := mustRun(t, dir, "migrate", "--dry-run")
	assert.Contains(t, out, "migrated=1, skipped=0, failed=0")
	data, err := os.ReadFile(specPath)
	require.NoError(t, err)
	assert.Equal(t, legacy, string(data))

	mustRun(t, dir, "migrate")
	out = mustRun(t, dir, "validate", "legacy")
	assert.Contains(t, out, "✓ spec legacy")
}

func TestMetricsFile(t *testing.T) {
	dir := newProject(t)
	authorAuthSpec(t, dir)

	metricsPath := filepath.Join(t.TempDir(), "llmanspec.prom")
	mustRun(t, dir, "--metrics-file", metricsPath, "validate", "--all")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "llmanspec_validation_items_total")
}

func TestNeedsApp(t *testing.T) {
	cmd, _ := rootCmd(io.Discard)
	for name, want := range map[string]bool{"version": false, "validate": true, "list": true} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, want, needsApp(sub), name)
	}
}
