package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c360studio/llmanspec/document"
)

// DocumentType identifies the kind of canonical document.
type DocumentType string

const (
	// DocumentTypeSpec identifies a main spec.
	DocumentTypeSpec DocumentType = "spec"
	// DocumentTypeDelta identifies a change delta.
	DocumentTypeDelta DocumentType = "delta"
)

// SectionRequirement describes a top-level structure a document needs.
type SectionRequirement struct {
	Name        string         // Block key as written in the payload
	Pattern     *regexp.Regexp // Matches the block header line
	Description string         // Shown in remediation hints
}

// RequiredSections maps document types to their required blocks.
var RequiredSections = map[DocumentType][]SectionRequirement{
	DocumentTypeSpec: {
		{
			Name:        "```ison",
			Pattern:     regexp.MustCompile("(?m)^\\s*```ison\\s*$"),
			Description: "a fenced ```ison code block",
		},
		{
			Name:        "object.spec",
			Pattern:     regexp.MustCompile(`(?m)^\s*object\.spec\s*$`),
			Description: "spec header with kind, name, purpose",
		},
		{
			Name:        "table.requirements",
			Pattern:     regexp.MustCompile(`(?m)^\s*table\.requirements\s*$`),
			Description: "requirements with req_id, title, statement",
		},
		{
			Name:        "table.scenarios",
			Pattern:     regexp.MustCompile(`(?m)^\s*table\.scenarios\s*$`),
			Description: "scenarios with req_id, id, given, when, then",
		},
	},
	DocumentTypeDelta: {
		{
			Name:        "```ison",
			Pattern:     regexp.MustCompile("(?m)^\\s*```ison\\s*$"),
			Description: "a fenced ```ison code block",
		},
		{
			Name:        "object.delta",
			Pattern:     regexp.MustCompile(`(?m)^\s*object\.delta\s*$`),
			Description: "delta header with kind",
		},
		{
			Name:        "table.ops",
			Pattern:     regexp.MustCompile(`(?m)^\s*table\.ops\s*$`),
			Description: "operations with op, req_id, title, statement, from, to, name",
		},
	},
}

const specExample = "example:\n" +
	"```ison\n" +
	"object.spec\n" +
	"version kind name purpose\n" +
	"\"1.0.0\" llman.sdd.spec sample \"Describe the capability.\"\n" +
	"\n" +
	"table.requirements\n" +
	"req_id title statement\n" +
	"existing Existing \"System MUST keep existing behavior.\"\n" +
	"\n" +
	"table.scenarios\n" +
	"req_id id given when then\n" +
	"existing baseline \"\" \"a request arrives\" \"it succeeds\"\n" +
	"```"

// MissingSections returns the required blocks absent from content.
func MissingSections(content string, docType DocumentType) []SectionRequirement {
	var missing []SectionRequirement
	for _, req := range RequiredSections[docType] {
		if !req.Pattern.MatchString(content) {
			missing = append(missing, req)
		}
	}
	return missing
}

// missingHint describes missing blocks, or returns "" when nothing is
// missing.
func missingHint(content string, docType DocumentType) string {
	missing := MissingSections(content, docType)
	if len(missing) == 0 {
		return ""
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Description))
	}
	hint := "missing canonical blocks: " + strings.Join(names, ", ")
	if docType == DocumentTypeSpec {
		hint += "\n" + specExample
	}
	return hint
}

// SpecValidation pairs a report with the parsed frontmatter, which the
// staleness evaluator needs. Frontmatter is nil when it had issues.
type SpecValidation struct {
	Report      Report
	Frontmatter *document.Frontmatter
}

// ValidateSpecContent validates a main spec file. path is the spec.md
// location; its parent directory names the spec.
func ValidateSpecContent(path, content string, strict bool) SpecValidation {
	specID := specIDFromPath(path)

	fm := document.ParseFrontmatter(content)
	issues := make([]Issue, 0, len(fm.Issues))
	for _, fi := range fm.Issues {
		issues = append(issues, Issue{Level: LevelError, Path: fi.Path, Message: fi.Message})
	}

	spec, err := document.ParseSpecBody(fm.Body, specID)
	if err != nil {
		message := err.Error()
		if hint := missingHint(fm.Body, DocumentTypeSpec); hint != "" {
			message = hint + "\n" + message
		}
		issues = append(issues, Issue{Level: LevelError, Path: "file", Message: message})
		return SpecValidation{Report: BuildReport(issues, strict), Frontmatter: fm.Frontmatter}
	}

	issues = append(issues, validateRequirements(spec, specID)...)
	return SpecValidation{Report: BuildReport(issues, strict), Frontmatter: fm.Frontmatter}
}

func validateRequirements(spec *document.Spec, specID string) []Issue {
	var issues []Issue
	for idx, req := range spec.Requirements {
		path := fmt.Sprintf("%s/requirements[%d]", specID, idx)
		if !document.ContainsNormative(req.Statement) {
			issues = append(issues, Issue{
				Level:   LevelError,
				Path:    path,
				Message: fmt.Sprintf("Requirement must contain SHALL or MUST: %s", req.Statement),
			})
		}
		if len(spec.ScenariosFor(req.ReqID)) == 0 {
			issues = append(issues, Issue{
				Level:   LevelError,
				Path:    path,
				Message: scenarioMissingMessage(req.ReqID),
			})
		}
	}
	return issues
}

func scenarioMissingMessage(reqID string) string {
	return fmt.Sprintf("requirement must have at least one scenario\n"+
		"add a `table.scenarios` row with req_id `%s`, e.g.: %s baseline \"\" \"a request arrives\" \"it succeeds\"",
		reqID, reqID)
}

func specIDFromPath(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return "spec"
	}
	return dir
}
