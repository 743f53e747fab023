package staleness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/metrics"
)

// DefaultTimeout bounds each git call.
const DefaultTimeout = 5 * time.Second

// Evaluator runs staleness checks against one repository.
type Evaluator struct {
	Git  Git
	Root string
	// BaseRef takes precedence over the fallback refs. The CLI fills it
	// from the loaded config, where EnvBaseRef overrides git.base_ref.
	BaseRef string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewEvaluator creates an evaluator with the default timeout and no
// base ref override.
func NewEvaluator(git Git, root string, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		Git:     git,
		Root:    root,
		Timeout: DefaultTimeout,
		Logger:  logger,
	}
}

// Input identifies the spec under evaluation.
type Input struct {
	SpecID   string
	SpecPath string
	// Frontmatter may be nil, which is treated as an empty scope.
	Frontmatter *document.Frontmatter
	// SpecUpdatedOverride replaces the diff-derived spec_updated flag. The
	// archive gate sets it because the rebuilt spec is not committed yet.
	SpecUpdatedOverride *bool
}

// Evaluate classifies the spec. Git failures become WARN issues; the
// dirty check always runs and a failure there counts as dirty.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) Result {
	logger := e.logger()
	path := in.SpecID + "/staleness"

	var (
		issues []Issue
		notes  = []string{}
		status = StatusOK
	)
	warn := func(msg string) {
		status = StatusWarn
		notes = append(notes, msg)
		issues = append(issues, Issue{Path: path, Message: msg})
	}

	scope := []string{}
	if in.Frontmatter != nil {
		scope = NormalizeScope(in.Frontmatter.ValidScope)
	}
	if len(scope) == 0 {
		warn(msgScopeMissing)
	}

	baseRef := e.resolveBaseRef(ctx)
	if baseRef == "" {
		warn(msgBaseMissing)
	}

	touched := []string{}
	specUpdated := false

	if status != StatusWarn {
		base, err := e.mergeBase(ctx, baseRef)
		if err != nil {
			warn(err.Error())
		} else {
			diff, err := e.diffNames(ctx, base)
			if err != nil {
				warn(err.Error())
			}
			if len(diff) > 0 {
				specRel := e.relative(in.SpecPath)
				for _, p := range diff {
					if p == specRel {
						specUpdated = true
					}
					if ScopeMatches(p, scope) {
						touched = append(touched, p)
					}
				}
			}
			if in.SpecUpdatedOverride != nil {
				specUpdated = *in.SpecUpdatedOverride
			}

			switch {
			case len(touched) > 0 && !specUpdated:
				status = StatusStale
				issues = append(issues, Issue{Path: path, Message: msgStale})
			case specUpdated && len(touched) == 0:
				status = StatusInfo
				notes = append(notes, msgSpecUpdated)
			}
		}
	}

	if in.SpecUpdatedOverride != nil {
		specUpdated = *in.SpecUpdatedOverride
		if specUpdated && status == StatusOK && len(touched) == 0 {
			status = StatusInfo
			notes = append(notes, msgSpecUpdated)
		}
	}

	dirty, err := e.dirty(ctx)
	if err != nil {
		notes = append(notes, err.Error())
		issues = append(issues, Issue{Path: path, Message: err.Error()})
		dirty = true
	}
	if dirty {
		if status == StatusOK {
			status = StatusWarn
		}
		notes = append(notes, msgDirty)
		issues = append(issues, Issue{Path: path, Message: msgDirty})
	}

	info := Info{
		Status:       status,
		Scope:        scope,
		TouchedPaths: touched,
		SpecUpdated:  specUpdated,
		Dirty:        dirty,
		Notes:        notes,
	}
	if baseRef != "" {
		info.BaseRef = &baseRef
	}

	metrics.RecordStaleness(string(status))
	logger.Debug("Staleness evaluated",
		"spec", in.SpecID,
		"status", status,
		"base_ref", baseRef,
		"touched", len(touched),
		"dirty", dirty)

	return Result{Info: info, Issues: issues}
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Evaluator) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Evaluator) resolveBaseRef(ctx context.Context) string {
	if ref := strings.TrimSpace(e.BaseRef); ref != "" {
		return ref
	}
	for _, ref := range fallbackRefs {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout())
		ok := e.Git.RefExists(callCtx, ref)
		cancel()
		if ok {
			return ref
		}
	}
	return ""
}

func (e *Evaluator) mergeBase(ctx context.Context, ref string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	base, err := e.Git.MergeBase(callCtx, ref, "HEAD")
	if err != nil {
		return "", e.gitError(callCtx, "merge-base", err)
	}
	return strings.TrimSpace(base), nil
}

func (e *Evaluator) diffNames(ctx context.Context, base string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	paths, err := e.Git.DiffNames(callCtx, base)
	if err != nil {
		return nil, e.gitError(callCtx, "diff", err)
	}
	return paths, nil
}

func (e *Evaluator) dirty(ctx context.Context) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	out, err := e.Git.StatusPorcelain(callCtx)
	if err != nil {
		return true, e.gitError(callCtx, "status", err)
	}
	return strings.TrimSpace(out) != "", nil
}

func (e *Evaluator) gitError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("git %s timed out after %s", op, e.timeout())
	}
	return err
}

// relative maps the spec path to the slash-separated form git reports.
func (e *Evaluator) relative(specPath string) string {
	root := e.Root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	spec := specPath
	if resolved, err := filepath.EvalSymlinks(spec); err == nil {
		spec = resolved
	}
	if rel, err := filepath.Rel(root, spec); err == nil && !strings.HasPrefix(rel, "..") {
		spec = rel
	}
	return normalizePath(filepath.ToSlash(spec))
}
