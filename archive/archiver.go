package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/metrics"
	"github.com/c360studio/llmanspec/workflow"
)

// Gate checks a rebuilt spec before anything is written. A non-nil error
// aborts the archive run.
type Gate interface {
	CheckRebuilt(ctx context.Context, specID, specPath, content string) error
}

// ArchiveOptions controls one archive run.
type ArchiveOptions struct {
	ChangeID string
	// DryRun computes every update and the archive target but writes nothing.
	DryRun bool
	// Force skips the post-merge gate.
	Force bool
	// SkipSpecs moves the change without touching any spec.
	SkipSpecs bool
	// Pretty aligns table columns in rewritten specs.
	Pretty bool
	// Now dates the archive directory; zero means time.Now.
	Now time.Time
}

// SpecUpdate is the prepared rewrite of one spec.
type SpecUpdate struct {
	SpecID  string   `json:"spec"`
	Sources []string `json:"sources"`
	Target  string   `json:"target"`
	Created bool     `json:"created"`
	Counts  Counts   `json:"counts"`
	// Error is set on the update whose merge or gate check failed.
	Error   string   `json:"error,omitempty"`
	Content string   `json:"-"`
}

// ArchiveReport describes what an archive run did, or would do.
type ArchiveReport struct {
	RunID       string       `json:"runId"`
	ChangeID    string       `json:"change"`
	DryRun      bool         `json:"dryRun"`
	Updates     []SpecUpdate `json:"updates"`
	Totals      Counts       `json:"totals"`
	ArchivePath string       `json:"archivePath"`
}

// ArchiverOption configures an Archiver.
type ArchiverOption func(*Archiver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ArchiverOption {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithFrontmatterDefaults overrides the scope and commands written into
// specs created by an archive.
func WithFrontmatterDefaults(scope, commands []string) ArchiverOption {
	return func(a *Archiver) {
		a.scope = scope
		a.commands = commands
	}
}

// Archiver merges a change's deltas into the specs and moves the change
// into the archive.
type Archiver struct {
	manager  *workflow.Manager
	gate     Gate
	logger   *slog.Logger
	scope    []string
	commands []string
}

// NewArchiver creates an archiver. gate may be nil, which behaves like
// Force on every run.
func NewArchiver(manager *workflow.Manager, gate Gate, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		manager: manager,
		gate:    gate,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive runs the archive for opts.ChangeID. Every spec update is
// prepared and gated before the first write.
func (a *Archiver) Archive(ctx context.Context, opts ArchiveOptions) (*ArchiveReport, error) {
	report, err := a.archive(ctx, opts)
	switch {
	case err != nil:
		metrics.RecordArchive("failed")
	case opts.DryRun:
		metrics.RecordArchive("dry_run")
	default:
		metrics.RecordArchive("archived")
	}
	return report, err
}

func (a *Archiver) archive(ctx context.Context, opts ArchiveOptions) (*ArchiveReport, error) {
	if err := workflow.ValidateID(opts.ChangeID, "change"); err != nil {
		return nil, err
	}
	if !a.manager.ChangeExists(opts.ChangeID) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrChangeNotFound, opts.ChangeID)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	report := &ArchiveReport{
		RunID:       uuid.NewString(),
		ChangeID:    opts.ChangeID,
		DryRun:      opts.DryRun,
		Updates:     []SpecUpdate{},
		ArchivePath: a.manager.ArchiveTarget(opts.ChangeID, now),
	}
	logger := a.logger.With(slog.String("run_id", report.RunID), slog.String("change", opts.ChangeID))

	if !opts.SkipSpecs {
		updates, err := a.prepare(ctx, opts, logger)
		report.Updates = append(report.Updates, updates...)
		for _, u := range updates {
			report.Totals = report.Totals.Add(u.Counts)
		}
		if err != nil {
			return report, err
		}
	}

	if opts.DryRun {
		logger.Info("Dry run complete", slog.Int("specs", len(report.Updates)), slog.String("archive", a.manager.Rel(report.ArchivePath)))
		return report, nil
	}

	if _, err := os.Stat(report.ArchivePath); err == nil {
		return report, fmt.Errorf("%w: %s", workflow.ErrArchiveExists, a.manager.Rel(report.ArchivePath))
	}

	for _, u := range report.Updates {
		if err := a.manager.WriteFile(u.Target, u.Content); err != nil {
			return report, fmt.Errorf("write spec %s: %w", u.SpecID, err)
		}
		metrics.RecordMerge(u.Counts.Added, u.Counts.Modified, u.Counts.Removed, u.Counts.Renamed)
		logger.Info("Updated spec",
			slog.String("spec", u.SpecID),
			slog.Int("added", u.Counts.Added),
			slog.Int("modified", u.Counts.Modified),
			slog.Int("removed", u.Counts.Removed),
			slog.Int("renamed", u.Counts.Renamed))
	}

	dst, err := a.manager.ArchiveChange(opts.ChangeID, now)
	if err != nil {
		return report, err
	}
	report.ArchivePath = dst
	logger.Info("Archived change", slog.String("archive", a.manager.Rel(dst)))
	return report, nil
}

// prepare builds, merges, and gates every spec touched by the change.
func (a *Archiver) prepare(ctx context.Context, opts ArchiveOptions, logger *slog.Logger) ([]SpecUpdate, error) {
	deltas, err := a.manager.ChangeDeltas(opts.ChangeID)
	if err != nil {
		return nil, err
	}

	var (
		specOrder []string
		bySpec    = map[string][]workflow.DeltaFile{}
	)
	for _, d := range deltas {
		if _, seen := bySpec[d.SpecID]; !seen {
			specOrder = append(specOrder, d.SpecID)
		}
		bySpec[d.SpecID] = append(bySpec[d.SpecID], d)
	}

	updates := make([]SpecUpdate, 0, len(specOrder))
	for _, specID := range specOrder {
		if err := ctx.Err(); err != nil {
			return updates, err
		}
		update, err := a.prepareSpec(ctx, specID, bySpec[specID], opts)
		if err != nil {
			// The failed update still reports what it attempted.
			if update != nil {
				updates = append(updates, *update)
			}
			return updates, err
		}
		logger.Debug("Prepared spec update", slog.String("spec", specID), slog.Bool("created", update.Created))
		updates = append(updates, *update)
	}
	return updates, nil
}

func (a *Archiver) prepareSpec(ctx context.Context, specID string, files []workflow.DeltaFile, opts ArchiveOptions) (*SpecUpdate, error) {
	if err := workflow.ValidateID(specID, "spec"); err != nil {
		return nil, err
	}

	update := &SpecUpdate{SpecID: specID, Target: a.manager.SpecPath(specID)}
	plans := make([]*DeltaPlan, 0, len(files))
	for _, f := range files {
		rel := a.manager.Rel(f.Path)
		update.Sources = append(update.Sources, rel)
		content, err := a.manager.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read delta %s: %w", rel, err)
		}
		plan, err := PlanFromContent(content, rel)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	plan := Combine(plans...)

	var (
		target   *document.Spec
		yamlText string
	)
	content, err := a.manager.ReadFile(update.Target)
	switch {
	case err == nil:
		var body string
		yamlText, body, _ = document.SplitFrontmatter(content)
		target, err = document.ParseSpecBody(body, fmt.Sprintf("spec `%s` during archive merge", specID))
		if err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		fm := document.ArchiveFrontmatter(opts.ChangeID).WithDefaults(a.scope, a.commands)
		if yamlText, err = fm.Render(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read spec %s: %w", specID, err)
	}

	res, err := Merge(target, plan, MergeOptions{SpecID: specID, ChangeID: opts.ChangeID})
	update.Counts = res.Counts
	update.Created = res.Created
	if err != nil {
		update.Error = err.Error()
		return update, err
	}
	update.Content = document.ComposeWithFrontmatter(yamlText, document.DumpSpecBody(res.Spec, opts.Pretty))

	if !opts.Force && a.gate != nil {
		if err := a.gate.CheckRebuilt(ctx, specID, update.Target, update.Content); err != nil {
			err = fmt.Errorf("rebuilt spec `%s` failed validation: %w", specID, err)
			update.Error = err.Error()
			update.Content = ""
			return update, err
		}
	}
	return update, nil
}
