package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c360studio/llmanspec/workflow"
	"github.com/c360studio/llmanspec/workflow/validation"
)

// Target is the item a changed file belongs to.
type Target struct {
	Type validation.ItemType
	ID   string
}

// Classify maps a path relative to the llmanspec root onto the spec or
// change it belongs to. Archived changes, proposals outside changes and
// the config file map to nothing.
func Classify(rel string) (Target, bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch {
	case len(parts) == 3 && parts[0] == workflow.SpecsDir && parts[2] == workflow.SpecFile:
		return Target{Type: validation.ItemSpec, ID: parts[1]}, true
	case len(parts) >= 3 && parts[0] == workflow.ChangesDir && parts[1] != workflow.ArchiveDir:
		return Target{Type: validation.ItemChange, ID: parts[1]}, true
	default:
		return Target{}, false
	}
}

// Validator is the part of validation.Service the runner needs.
type Validator interface {
	ValidateItem(ctx context.Context, itemType validation.ItemType, id string, strict bool) (*validation.BulkReport, error)
}

// Runner re-validates the items touched by watcher events.
type Runner struct {
	watcher   *Watcher
	validator Validator
	manager   *workflow.Manager
	strict    bool
	onReport  func(*validation.BulkReport)
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStrict validates in strict mode.
func WithStrict(strict bool) RunnerOption {
	return func(r *Runner) {
		r.strict = strict
	}
}

// WithReportHandler receives every report produced.
func WithReportHandler(fn func(*validation.BulkReport)) RunnerOption {
	return func(r *Runner) {
		r.onReport = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner over a watcher rooted at manager.RootPath().
func NewRunner(w *Watcher, validator Validator, manager *workflow.Manager, opts ...RunnerOption) *Runner {
	r := &Runner{
		watcher:   w,
		validator: validator,
		manager:   manager,
		onReport:  func(*validation.BulkReport) {},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes events until the watcher's channel closes or ctx is done.
// Events already queued are coalesced so each item is validated once per
// batch.
func (r *Runner) Run(ctx context.Context) error {
	events := r.watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			batch := map[Target]bool{}
			r.collect(batch, ev)
		drain:
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						break drain
					}
					r.collect(batch, ev)
				default:
					break drain
				}
			}
			r.validateBatch(ctx, batch)
		}
	}
}

func (r *Runner) collect(batch map[Target]bool, ev Event) {
	target, ok := Classify(ev.Path)
	if !ok {
		r.logger.Debug("Ignoring change outside specs and changes", "path", ev.Path)
		return
	}
	if ev.Operation == OpDelete {
		switch target.Type {
		case validation.ItemSpec:
			r.logger.Info("Spec removed", "spec", target.ID)
			return
		case validation.ItemChange:
			if !r.manager.ChangeExists(target.ID) {
				r.logger.Info("Change removed", "change", target.ID)
				return
			}
		}
	}
	batch[target] = true
}

func (r *Runner) validateBatch(ctx context.Context, batch map[Target]bool) {
	targets := make([]Target, 0, len(batch))
	for t := range batch {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].ID != targets[j].ID {
			return targets[i].ID < targets[j].ID
		}
		return targets[i].Type < targets[j].Type
	})

	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}
		report, err := r.validator.ValidateItem(ctx, t.Type, t.ID, r.strict)
		if err != nil {
			r.logger.Warn("Validation failed", "type", t.Type, "id", t.ID, "error", err)
			continue
		}
		r.onReport(report)
	}
}
