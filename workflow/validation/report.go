// Package validation checks specs and change deltas and accumulates every
// problem found into a report. Parsers fail fast; this package does not.
package validation

import (
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/staleness"
)

// Level is the severity of an issue.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
)

// Issue is a single validation finding.
type Issue struct {
	Level   Level  `json:"level"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Summary counts issues by level.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Report is the result of validating one item.
type Report struct {
	Valid   bool    `json:"valid"`
	Issues  []Issue `json:"issues"`
	Summary Summary `json:"summary"`
}

// BuildReport normalizes levels and counts issues. In strict mode every
// warning becomes an error; info is never escalated.
func BuildReport(issues []Issue, strict bool) Report {
	normalized := ApplyStrict(issues, strict)
	report := Report{Issues: normalized}
	for _, issue := range normalized {
		switch issue.Level {
		case LevelError:
			report.Summary.Errors++
		case LevelWarning:
			report.Summary.Warnings++
		case LevelInfo:
			report.Summary.Info++
		}
	}
	report.Valid = report.Summary.Errors == 0
	return report
}

// ApplyStrict returns a copy of issues with warnings promoted to errors
// when strict is set.
func ApplyStrict(issues []Issue, strict bool) []Issue {
	out := make([]Issue, len(issues))
	copy(out, issues)
	if !strict {
		return out
	}
	for i := range out {
		if out[i].Level == LevelWarning {
			out[i].Level = LevelError
		}
	}
	return out
}

// ErrorReport is a failed report with a single error at path.
func ErrorReport(path, message string) Report {
	return BuildReport([]Issue{{Level: LevelError, Path: path, Message: message}}, false)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Level == LevelError {
			return true
		}
	}
	return false
}

// FromStaleness converts staleness findings to warnings.
func FromStaleness(issues []staleness.Issue) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, Issue{Level: LevelWarning, Path: issue.Path, Message: issue.Message})
	}
	return out
}

// FormatIssues joins issues as `path: message; ...`.
func FormatIssues(issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return strings.Join(parts, "; ")
}

// Format renders the report as human-readable text, one issue per line.
func (r Report) Format() string {
	if r.Valid && len(r.Issues) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, issue := range r.Issues {
		sb.WriteString(fmt.Sprintf("  [%s] %s: %s\n", issue.Level, issue.Path, issue.Message))
	}
	sb.WriteString(fmt.Sprintf("  %d error(s), %d warning(s), %d info\n",
		r.Summary.Errors, r.Summary.Warnings, r.Summary.Info))
	return sb.String()
}
