// Package git runs the read-only git commands llmanspec needs: ref
// lookup, merge-base, changed-file listing, and working tree status.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ErrNotRepository is returned when the executor root is not inside a git
// work tree.
var ErrNotRepository = errors.New("not a git repository")

// Executor runs git in a fixed repository directory.
type Executor struct {
	repoRoot string
}

// NewExecutor creates an executor rooted at repoRoot.
func NewExecutor(repoRoot string) *Executor {
	return &Executor{repoRoot: repoRoot}
}

// RepoRoot returns the directory git runs in.
func (e *Executor) RepoRoot() string {
	return e.repoRoot
}

// IsRepo reports whether the root is inside a git work tree.
func (e *Executor) IsRepo(ctx context.Context) bool {
	_, err := e.runGit(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// TopLevel returns the absolute path of the enclosing work tree.
func (e *Executor) TopLevel(ctx context.Context) (string, error) {
	out, err := e.runGit(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	return strings.TrimSpace(out), nil
}

// RefExists reports whether ref resolves to an object.
func (e *Executor) RefExists(ctx context.Context, ref string) bool {
	_, err := e.runGit(ctx, "rev-parse", "--verify", "--quiet", ref)
	return err == nil
}

// MergeBase returns the best common ancestor of ref and head.
func (e *Executor) MergeBase(ctx context.Context, ref, head string) (string, error) {
	out, err := e.runGit(ctx, "merge-base", ref, head)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// DiffNames lists the files changed between base and HEAD, sorted and
// deduplicated.
func (e *Executor) DiffNames(ctx context.Context, base string) ([]string, error) {
	out, err := e.runGit(ctx, "diff", "--name-only", base+"..HEAD")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		p := strings.TrimSpace(line)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// StatusPorcelain returns `git status --porcelain` output.
func (e *Executor) StatusPorcelain(ctx context.Context) (string, error) {
	return e.runGit(ctx, "status", "--porcelain")
}

// runGit executes a git command in the repo directory. On failure the
// error carries stderr, or a generic message when stderr is empty.
func (e *Executor) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.New(msg)
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
