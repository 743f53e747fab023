package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTaskSections are used when a change is scaffolded without
// explicit task sections.
var DefaultTaskSections = []string{"Implementation", "Testing", "Documentation"}

// ProposalTemplate generates a proposal.md for a change.
func ProposalTemplate(title, why string) string {
	if strings.TrimSpace(why) == "" {
		why = "Describe the problem this change solves."
	}
	return fmt.Sprintf(`# %s

## Why

%s

## What Changes

- Describe the behavior being added, modified or removed

## Impact

- Affected specs:
- Affected code:
`, title, why)
}

// ProposalTitle returns the first `# ` heading of a proposal, without a
// leading "Change: ", or fallback when there is none.
func ProposalTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		title, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), "# ")
		if !ok {
			continue
		}
		title = strings.TrimSpace(title)
		if rest, ok := strings.CutPrefix(title, "Change: "); ok {
			return strings.TrimSpace(rest)
		}
		return title
	}
	return fallback
}

// TasksTemplate generates a tasks.md checklist with one numbered
// section per entry in sections.
func TasksTemplate(title string, sections []string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Tasks: %s\n\n", title))

	if len(sections) == 0 {
		sections = DefaultTaskSections
	}

	for i, section := range sections {
		sb.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, section))
		sb.WriteString(fmt.Sprintf("- [ ] %d.1 Task description\n", i+1))
		sb.WriteString("\n")
	}

	return sb.String()
}

// NewChangeOptions control change scaffolding.
type NewChangeOptions struct {
	Title    string
	Why      string
	Sections []string
	// SkipTasks leaves tasks.md out.
	SkipTasks bool
}

// CreateChange scaffolds changes/<id>/ with a proposal.md, a tasks.md
// and an empty specs/ directory. It fails if the change already exists.
func (m *Manager) CreateChange(changeID string, opts NewChangeOptions) ([]string, error) {
	if err := ValidateID(changeID, "change"); err != nil {
		return nil, err
	}
	if m.ChangeExists(changeID) {
		return nil, fmt.Errorf("%w: %s", ErrChangeExists, changeID)
	}

	title := opts.Title
	if title == "" {
		title = changeID
	}

	dir := m.ChangePath(changeID)
	if err := os.MkdirAll(filepath.Join(dir, ChangeSpecsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create change directory: %w", err)
	}

	files := []string{filepath.Join(dir, ProposalFile)}
	if err := m.WriteFile(files[0], ProposalTemplate(title, opts.Why)); err != nil {
		return nil, err
	}
	if !opts.SkipTasks {
		path := filepath.Join(dir, TasksFile)
		if err := m.WriteFile(path, TasksTemplate(title, opts.Sections)); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}
