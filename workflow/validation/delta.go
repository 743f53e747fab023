package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/llmanspec/archive"
	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/workflow"
)

const deltaMissingMessage = "change has no delta operations\n" +
	"add specs/<spec>/spec.md with a ```ison block holding `object.delta` and at least one `table.ops` row"

// ValidateDeltaPlan checks one spec's combined delta plan. Names are
// req_ids, except for rename sources and targets, which are titles.
func ValidateDeltaPlan(specID string, plan *archive.DeltaPlan) []Issue {
	path := specID + "/" + workflow.SpecFile
	var issues []Issue
	errorf := func(format string, args ...any) {
		issues = append(issues, Issue{Level: LevelError, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	var added, modified, removed, renamedFrom, renamedTo []string
	checkChange := func(section string, c archive.RequirementChange) {
		switch {
		case strings.TrimSpace(c.Statement) == "":
			errorf("%s %q is missing requirement text", section, c.ReqID)
		case !document.ContainsNormative(c.Statement):
			errorf("%s %q must contain SHALL or MUST", section, c.ReqID)
		}
		if len(c.Scenarios) == 0 {
			errorf("%s %q: requirement must have at least one scenario", section, c.ReqID)
		}
	}

	for _, c := range plan.Added {
		checkChange("ADDED", c)
		added = append(added, normalizeName(c.ReqID))
	}
	for _, c := range plan.Modified {
		checkChange("MODIFIED", c)
		modified = append(modified, normalizeName(c.ReqID))
	}
	for _, r := range plan.Removed {
		removed = append(removed, normalizeName(r.ReqID))
	}
	for _, r := range plan.Renamed {
		renamedFrom = append(renamedFrom, normalizeName(r.From))
		renamedTo = append(renamedTo, normalizeName(r.To))
	}

	for _, group := range []struct {
		label string
		names []string
	}{
		{"ADDED", added},
		{"MODIFIED", modified},
		{"REMOVED", removed},
		{"RENAMED FROM", renamedFrom},
		{"RENAMED TO", renamedTo},
	} {
		for _, name := range duplicates(group.names) {
			errorf("Duplicate requirement in %s: %s", group.label, name)
		}
	}

	for _, name := range modified {
		if contains(removed, name) || contains(added, name) {
			errorf("Requirement present in multiple sections: %s", name)
		}
	}
	for _, name := range added {
		if contains(removed, name) {
			errorf("Requirement present in multiple sections: %s", name)
		}
	}

	if plan.RenameDeclared && len(plan.Renamed) == 0 {
		errorf("RENAMED section must include FROM/TO pairs")
	}
	return issues
}

// ValidateChange parses every delta under changeDir/specs and validates
// the combined plan of each spec.
func ValidateChange(changeDir string, strict bool) Report {
	specsDir := filepath.Join(changeDir, workflow.ChangeSpecsDir)
	info, err := os.Stat(specsDir)
	if err != nil || !info.IsDir() {
		return BuildReport([]Issue{{Level: LevelError, Path: workflow.ChangeSpecsDir, Message: deltaMissingMessage}}, strict)
	}

	files, err := workflow.DeltaFilesIn(specsDir)
	if err != nil {
		return BuildReport([]Issue{{Level: LevelError, Path: workflow.ChangeSpecsDir, Message: err.Error()}}, strict)
	}

	var (
		issues []Issue
		order  []string
		plans  = map[string][]*archive.DeltaPlan{}
		total  int
	)
	for _, f := range files {
		rel := f.SpecID + "/" + filepath.Base(f.Path)
		content, err := os.ReadFile(f.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			issues = append(issues, Issue{Level: LevelError, Path: rel, Message: err.Error()})
			continue
		}
		plan, err := archive.PlanFromContent(string(content), rel)
		if err != nil {
			issues = append(issues, Issue{Level: LevelError, Path: rel, Message: err.Error()})
			continue
		}
		if _, seen := plans[f.SpecID]; !seen {
			order = append(order, f.SpecID)
		}
		plans[f.SpecID] = append(plans[f.SpecID], plan)
	}

	for _, specID := range order {
		plan := archive.Combine(plans[specID]...)
		total += plan.Counts().Total()
		issues = append(issues, ValidateDeltaPlan(specID, plan)...)
	}

	if total == 0 {
		issues = append(issues, Issue{Level: LevelError, Path: workflow.ChangeSpecsDir, Message: deltaMissingMessage})
	}
	return BuildReport(issues, strict)
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

func duplicates(names []string) []string {
	seen := make(map[string]bool, len(names))
	var dups []string
	for _, n := range names {
		if seen[n] {
			dups = append(dups, n)
			continue
		}
		seen[n] = true
	}
	return dups
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
