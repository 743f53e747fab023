package authoring

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/workflow"
)

// Editor applies authoring helpers to files in a project.
type Editor struct {
	manager  *workflow.Manager
	pretty   bool
	scope    []string
	commands []string
	logger   *slog.Logger
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithPretty pads table columns in written payloads.
func WithPretty(pretty bool) EditorOption {
	return func(e *Editor) {
		e.pretty = pretty
	}
}

// WithFrontmatterDefaults overrides scope and commands in new specs.
func WithFrontmatterDefaults(scope, commands []string) EditorOption {
	return func(e *Editor) {
		e.scope = scope
		e.commands = commands
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EditorOption {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEditor creates an editor for the project managed by m.
func NewEditor(m *workflow.Manager, opts ...EditorOption) *Editor {
	e := &Editor{manager: m, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SpecSkeleton writes a new spec with default frontmatter and returns its
// path. An existing file is kept unless force is set.
func (e *Editor) SpecSkeleton(specID, purpose string, force bool) (string, error) {
	if err := workflow.ValidateID(specID, "spec"); err != nil {
		return "", err
	}
	path := e.manager.SpecPath(specID)
	if err := e.checkTarget(path, force); err != nil {
		return "", err
	}

	spec, fm := NewSpecDocument(specID, purpose)
	yamlText, err := fm.WithDefaults(e.scope, e.commands).Render()
	if err != nil {
		return "", err
	}
	content := document.ComposeWithFrontmatter(yamlText, document.DumpSpecBody(spec, e.pretty))
	if err := e.manager.WriteFile(path, content); err != nil {
		return "", err
	}
	e.logger.Info("Created spec skeleton", "spec", specID, "path", e.manager.Rel(path))
	return path, nil
}

// UpdateSpec parses a spec, applies fn, and writes the result back with
// its frontmatter untouched.
func (e *Editor) UpdateSpec(specID string, fn func(*document.Spec) error) (string, error) {
	content, err := e.manager.ReadSpec(specID)
	if err != nil {
		return "", err
	}
	path := e.manager.SpecPath(specID)

	yamlText, body, ok := document.SplitFrontmatter(content)
	if !ok {
		return "", fmt.Errorf("%w: %s (run `llmanspec spec init %s` to initialize)",
			ErrMissingFrontmatter, e.manager.Rel(path), specID)
	}

	context := fmt.Sprintf("spec `%s`", specID)
	spec, err := document.ParseSpecBody(body, context)
	if err != nil {
		return "", err
	}
	spec.Meta.Kind = document.SpecKind
	spec.Meta.Name = specID

	if err := fn(spec); err != nil {
		return "", fmt.Errorf("%s: %w", context, err)
	}

	out := document.ComposeWithFrontmatter(yamlText, document.DumpSpecBody(spec, e.pretty))
	if err := e.manager.WriteFile(path, out); err != nil {
		return "", err
	}
	e.logger.Debug("Updated spec", "spec", specID)
	return path, nil
}

// DeltaSkeleton writes an empty delta for specID in changeID.
func (e *Editor) DeltaSkeleton(changeID, specID string, force bool) (string, error) {
	path, err := e.deltaPath(changeID, specID)
	if err != nil {
		return "", err
	}
	if err := e.checkTarget(path, force); err != nil {
		return "", err
	}
	if err := e.manager.WriteFile(path, document.DumpDeltaBody(NewDeltaDocument(), e.pretty)); err != nil {
		return "", err
	}
	e.logger.Info("Created delta skeleton", "change", changeID, "spec", specID)
	return path, nil
}

// UpdateDelta parses a delta, applies fn, and writes the result back.
func (e *Editor) UpdateDelta(changeID, specID string, fn func(*document.Delta) error) (string, error) {
	path, err := e.deltaPath(changeID, specID)
	if err != nil {
		return "", err
	}
	content, err := e.manager.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read delta spec %s: %w", e.manager.Rel(path), err)
	}

	context := fmt.Sprintf("delta spec `%s` for change `%s`", specID, changeID)
	yamlText, body, _ := document.SplitFrontmatter(content)
	delta, err := document.ParseDeltaBody(body, context)
	if err != nil {
		return "", err
	}
	delta.Meta.Kind = document.DeltaKind

	if err := fn(delta); err != nil {
		return "", fmt.Errorf("%s: %w", context, err)
	}

	out := document.ComposeWithFrontmatter(yamlText, document.DumpDeltaBody(delta, e.pretty))
	if err := e.manager.WriteFile(path, out); err != nil {
		return "", err
	}
	e.logger.Debug("Updated delta", "change", changeID, "spec", specID)
	return path, nil
}

func (e *Editor) deltaPath(changeID, specID string) (string, error) {
	if err := workflow.ValidateID(changeID, "change"); err != nil {
		return "", err
	}
	if err := workflow.ValidateID(specID, "spec"); err != nil {
		return "", err
	}
	return e.manager.ChangeSpecPath(changeID, specID), nil
}

func (e *Editor) checkTarget(path string, force bool) error {
	if force {
		return nil
	}
	_, err := e.manager.ReadFile(path)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s (pass --force to overwrite)", ErrTargetAlreadyExists, e.manager.Rel(path))
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return err
	}
}
