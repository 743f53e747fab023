// Package staleness decides whether a spec has fallen behind the code it
// describes. It compares the files touched since a base ref against the
// spec's valid_scope and reports advisory issues; it never fails hard.
package staleness

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Status is the outcome of one staleness evaluation.
type Status string

const (
	StatusOK            Status = "OK"
	StatusStale         Status = "STALE"
	StatusInfo          Status = "INFO"
	StatusWarn          Status = "WARN"
	StatusNotApplicable Status = "NOT_APPLICABLE"
)

// EnvBaseRef overrides base ref resolution when set to a non-blank value.
// config.Loader is the only reader.
const EnvBaseRef = "LLMANSPEC_BASE_REF"

// Fallback base refs, tried in order when no override is set.
var fallbackRefs = []string{"origin/main", "origin/master"}

const (
	msgScopeMissing = "llman_spec_valid_scope is missing or empty; staleness cannot be evaluated"
	msgBaseMissing  = "no base ref found; set " + EnvBaseRef + " or fetch origin/main"
	msgStale        = "files in llman_spec_valid_scope changed since the base ref but the spec was not updated"
	msgSpecUpdated  = "spec updated without changes in llman_spec_valid_scope"
	msgDirty        = "working tree has uncommitted changes; staleness reflects committed history only"
)

// Git is the subset of git the evaluator needs. Paths returned by
// DiffNames are repository-relative with forward slashes.
type Git interface {
	RefExists(ctx context.Context, ref string) bool
	MergeBase(ctx context.Context, ref, head string) (string, error)
	DiffNames(ctx context.Context, base string) ([]string, error)
	StatusPorcelain(ctx context.Context) (string, error)
}

// Info is the machine-readable staleness summary attached to spec items.
type Info struct {
	Status       Status   `json:"status"`
	BaseRef      *string  `json:"baseRef"`
	Scope        []string `json:"scope"`
	TouchedPaths []string `json:"touchedPaths"`
	SpecUpdated  bool     `json:"specUpdated"`
	Dirty        bool     `json:"dirty"`
	Notes        []string `json:"notes"`
}

// NotApplicable is the Info reported for items that have no scope, such
// as changes.
func NotApplicable() Info {
	return Info{
		Status:       StatusNotApplicable,
		Scope:        []string{},
		TouchedPaths: []string{},
		Notes:        []string{},
	}
}

// Issue is a staleness finding. Every staleness issue is a warning.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result pairs the summary with the issues to fold into a report.
type Result struct {
	Info   Info
	Issues []Issue
}

// NormalizeScope trims entries, strips `./` and surrounding slashes, and
// drops entries left empty.
func NormalizeScope(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := normalizePath(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func normalizePath(value string) string {
	v := strings.TrimSpace(value)
	for strings.HasPrefix(v, "./") {
		v = v[2:]
	}
	v = strings.TrimLeft(v, "/")
	return strings.TrimRight(v, "/")
}

// ScopeMatches reports whether path falls under any scope entry: an exact
// match, a directory prefix, or a doublestar glob.
func ScopeMatches(path string, scope []string) bool {
	p := normalizePath(path)
	for _, entry := range scope {
		if p == entry || strings.HasPrefix(p, entry+"/") {
			return true
		}
		if isGlob(entry) {
			if ok, err := doublestar.Match(entry, p); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
