// Package migrate converts legacy Markdown specs and deltas to canonical
// ISON documents in place.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/llmanspec/archive"
	"github.com/c360studio/llmanspec/authoring"
	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/source/parser"
	"github.com/c360studio/llmanspec/workflow"
	"github.com/c360studio/llmanspec/workflow/validation"
)

var (
	// ErrRootNotFound is returned when the project has no llmanspec tree.
	ErrRootNotFound = errors.New("llmanspec directory not found")

	// ErrMigrationFailed is returned by Run when any file failed.
	ErrMigrationFailed = errors.New("migration failed for some files")
)

// Kind is the document kind of a migrated file.
type Kind string

const (
	KindSpec  Kind = "spec"
	KindDelta Kind = "delta"
)

// Outcome is what happened to one file.
type Outcome string

const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// FileResult reports one file. Issues are findings against the converted
// document; they do not stop the conversion.
type FileResult struct {
	Path    string             `json:"path"`
	Kind    Kind               `json:"kind"`
	Outcome Outcome            `json:"outcome"`
	Error   string             `json:"error,omitempty"`
	Issues  []validation.Issue `json:"issues,omitempty"`
}

// Result is the report of a Run.
type Result struct {
	RunID  string       `json:"runId"`
	DryRun bool         `json:"dryRun"`
	Files  []FileResult `json:"files"`
}

// Count returns how many files ended with outcome o.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Summary is the one-line headline of a run.
func (r *Result) Summary() string {
	mode := "applied"
	if r.DryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("ISON migration (%s): migrated=%d, skipped=%d, failed=%d",
		mode, r.Count(OutcomeMigrated), r.Count(OutcomeSkipped), r.Count(OutcomeFailed))
}

// Conversion is a converted document.
type Conversion struct {
	Content string
	Issues  []validation.Issue
}

// Migrator converts the documents of one project.
type Migrator struct {
	manager *workflow.Manager
	parser  *parser.LegacyParser
	pretty  bool
	logger  *slog.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithPretty pads table columns in the converted payloads.
func WithPretty(pretty bool) Option {
	return func(m *Migrator) {
		m.pretty = pretty
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a migrator for the project managed by manager.
func New(manager *workflow.Manager, opts ...Option) *Migrator {
	m := &Migrator{
		manager: manager,
		parser:  parser.NewLegacyParser(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateSpec converts a legacy spec. It returns nil when content is
// already canonical. The spec name is the parent directory of path.
func (m *Migrator) MigrateSpec(path, content string) (*Conversion, error) {
	if parser.IsCanonical(content) {
		return nil, nil
	}
	rel := m.manager.Rel(path)

	legacy, err := m.parser.ParseSpec(path, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("main spec `%s`: %w; cannot migrate", rel, err)
	}

	spec, _ := authoring.NewSpecDocument(nameFromPath(path), legacy.Purpose)
	reqIDs := newSlugger("requirement")
	for _, req := range legacy.Requirements {
		reqID := reqIDs.next(req.Title)
		spec.Requirements = append(spec.Requirements, document.Requirement{
			ReqID:     reqID,
			Title:     req.Title,
			Statement: req.Statement,
		})
		spec.Scenarios = append(spec.Scenarios, convertScenarios(reqID, req.Scenarios)...)
	}

	body := document.DumpSpecBody(spec, m.pretty)
	if _, err := document.ParseSpecBody(body, rel); err != nil {
		return nil, fmt.Errorf("main spec `%s`: converted document is invalid: %w", rel, err)
	}

	out := document.ComposeWithFrontmatter(legacy.FrontmatterYAML, body)
	report := validation.ValidateSpecContent(path, out, false)
	return &Conversion{Content: out, Issues: report.Report.Issues}, nil
}

// MigrateDelta converts a legacy delta. It returns nil when content is
// already canonical. Ops are written added, modified, removed, renamed.
func (m *Migrator) MigrateDelta(path, content string) (*Conversion, error) {
	if parser.IsCanonical(content) {
		return nil, nil
	}
	rel := m.manager.Rel(path)

	legacy, err := m.parser.ParseDelta(path, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("delta spec `%s`: %w; cannot migrate", rel, err)
	}

	delta := document.NewDelta()
	reqIDs := newSlugger("requirement")
	addChanges := func(kind document.OpKind, reqs []parser.Requirement) {
		for _, req := range reqs {
			reqID := reqIDs.next(req.Title)
			delta.Ops = append(delta.Ops, document.Op{
				Op:        kind,
				ReqID:     reqID,
				Title:     document.Opt(req.Title),
				Statement: document.Opt(req.Statement),
			})
			delta.Scenarios = append(delta.Scenarios, convertScenarios(reqID, req.Scenarios)...)
		}
	}
	addChanges(document.OpAdd, legacy.Added)
	addChanges(document.OpModify, legacy.Modified)
	for _, title := range legacy.Removed {
		delta.Ops = append(delta.Ops, document.Op{
			Op:    document.OpRemove,
			ReqID: reqIDs.next(title),
			Name:  document.Opt(title),
		})
	}
	for _, pair := range legacy.Renamed {
		delta.Ops = append(delta.Ops, document.Op{
			Op:    document.OpRename,
			ReqID: reqIDs.next(pair.From),
			From:  document.Opt(pair.From),
			To:    document.Opt(pair.To),
		})
	}

	out := document.ComposeWithFrontmatter(legacy.FrontmatterYAML, document.DumpDeltaBody(delta, m.pretty))
	plan, err := archive.PlanFromContent(out, rel)
	if err != nil {
		return nil, fmt.Errorf("delta spec `%s`: converted document is invalid: %w", rel, err)
	}
	plan.RenameDeclared = legacy.RenameDeclared

	return &Conversion{Content: out, Issues: validation.ValidateDeltaPlan(nameFromPath(path), plan)}, nil
}

// Run converts every spec and every change delta, archived changes
// included. Nothing is written when dryRun is set.
func (m *Migrator) Run(ctx context.Context, dryRun bool) (*Result, error) {
	root := m.manager.RootPath()
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%w at %s", ErrRootNotFound, root)
	}

	result := &Result{RunID: uuid.New().String(), DryRun: dryRun, Files: []FileResult{}}
	logger := m.logger.With("run_id", result.RunID)

	specIDs, err := m.manager.SpecIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range specIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Files = append(result.Files, m.migrateFile(m.manager.SpecPath(id), KindSpec, dryRun, m.MigrateSpec, logger))
	}

	deltas, err := m.deltaFiles()
	if err != nil {
		return nil, err
	}
	for _, d := range deltas {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Files = append(result.Files, m.migrateFile(d.Path, KindDelta, dryRun, m.MigrateDelta, logger))
	}

	logger.Info("Migration finished",
		"dry_run", dryRun,
		"migrated", result.Count(OutcomeMigrated),
		"skipped", result.Count(OutcomeSkipped),
		"failed", result.Count(OutcomeFailed))

	if result.Count(OutcomeFailed) > 0 {
		var details strings.Builder
		for _, f := range result.Files {
			if f.Outcome == OutcomeFailed {
				fmt.Fprintf(&details, "\n- %s: %s", f.Path, f.Error)
			}
		}
		return result, fmt.Errorf("%w:%s", ErrMigrationFailed, details.String())
	}
	return result, nil
}

func (m *Migrator) migrateFile(path string, kind Kind, dryRun bool,
	convert func(path, content string) (*Conversion, error), logger *slog.Logger) FileResult {
	res := FileResult{Path: m.manager.Rel(path), Kind: kind}

	content, err := m.manager.ReadFile(path)
	if err != nil {
		res.Outcome, res.Error = OutcomeFailed, err.Error()
		return res
	}

	conv, err := convert(path, content)
	switch {
	case err != nil:
		res.Outcome, res.Error = OutcomeFailed, err.Error()
		logger.Warn("Migration failed", "path", res.Path, "error", err)
		return res
	case conv == nil:
		res.Outcome = OutcomeSkipped
		return res
	}

	res.Outcome, res.Issues = OutcomeMigrated, conv.Issues
	if len(conv.Issues) > 0 {
		logger.Warn("Migrated document has validation issues", "path", res.Path, "issues", validation.FormatIssues(conv.Issues))
	}
	if dryRun {
		return res
	}
	if err := m.manager.WriteFile(path, conv.Content); err != nil {
		res.Outcome, res.Error, res.Issues = OutcomeFailed, err.Error(), nil
		return res
	}
	logger.Debug("Migrated document", "path", res.Path, "kind", kind)
	return res
}

func (m *Migrator) deltaFiles() ([]workflow.DeltaFile, error) {
	var files []workflow.DeltaFile

	changeIDs, err := m.manager.ChangeIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range changeIDs {
		deltas, err := m.manager.ChangeDeltas(id)
		if err != nil {
			return nil, err
		}
		files = append(files, deltas...)
	}

	archived, err := m.manager.ArchivedChangeIDs()
	if err != nil {
		return nil, err
	}
	for _, dir := range archived {
		deltas, err := workflow.DeltaFilesIn(filepath.Join(m.manager.ArchivePath(), dir, workflow.ChangeSpecsDir))
		if err != nil {
			return nil, err
		}
		files = append(files, deltas...)
	}
	return files, nil
}

// convertScenarios maps legacy scenarios onto rows of reqID. Prose
// scenarios keep their text as the trigger.
func convertScenarios(reqID string, scenarios []parser.Scenario) []document.Scenario {
	ids := newSlugger("scenario")
	out := make([]document.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		row := document.Scenario{ReqID: reqID, ID: ids.next(sc.Name)}
		if sc.Structured() {
			row.Given, row.When, row.Then = sc.Given, sc.When, sc.Then
		} else {
			row.When = strings.Join(strings.Fields(sc.Text), " ")
		}
		if row.When == "" {
			row.When = authoring.PlaceholderWhen
		}
		if row.Then == "" {
			row.Then = authoring.PlaceholderThen
		}
		out = append(out, row)
	}
	return out
}

func nameFromPath(path string) string {
	name := filepath.Base(filepath.Dir(path))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "spec"
	}
	return name
}
