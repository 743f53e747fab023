package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/llmanspec/archive"
	"github.com/c360studio/llmanspec/document"
)

const frontmatter = "---\nllman_spec_valid_scope:\n  - src/\nllman_spec_valid_commands:\n  - go test ./...\nllman_spec_evidence:\n  - ci\n---\n\n"

const validBody = "```ison\nobject.spec\nversion kind name purpose\n\"1.0.0\" \"llman.sdd.spec\" sample \"Sample capability.\"\n\n" +
	"table.requirements\nreq_id title statement\nexisting Existing \"System MUST keep existing behavior.\"\n\n" +
	"table.scenarios\nreq_id id given when then\nexisting baseline \"\" \"a request arrives\" \"it succeeds\"\n```\n"

const specPath = "llmanspec/specs/sample/spec.md"

func TestBuildReport(t *testing.T) {
	issues := []Issue{
		{Level: LevelError, Path: "a", Message: "e"},
		{Level: LevelWarning, Path: "b", Message: "w"},
		{Level: LevelInfo, Path: "c", Message: "i"},
	}

	tests := []struct {
		name   string
		strict bool
		want   Summary
		valid  bool
	}{
		{"lenient", false, Summary{Errors: 1, Warnings: 1, Info: 1}, false},
		{"strict", true, Summary{Errors: 2, Warnings: 0, Info: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := BuildReport(issues, tt.strict)
			assert.Equal(t, tt.want, report.Summary)
			assert.Equal(t, tt.valid, report.Valid)
		})
	}

	t.Run("warnings alone stay valid", func(t *testing.T) {
		report := BuildReport([]Issue{{Level: LevelWarning, Path: "x", Message: "w"}}, false)
		assert.True(t, report.Valid)
	})

	t.Run("strict does not mutate input", func(t *testing.T) {
		BuildReport(issues, true)
		assert.Equal(t, LevelWarning, issues[1].Level)
	})
}

func TestFormatIssues(t *testing.T) {
	got := FormatIssues([]Issue{
		{Level: LevelError, Path: "a/requirements[0]", Message: "bad"},
		{Level: LevelError, Path: "a/staleness", Message: "dirty"},
	})
	assert.Equal(t, "a/requirements[0]: bad; a/staleness: dirty", got)
}

func TestValidateSpecContent_Valid(t *testing.T) {
	v := ValidateSpecContent(specPath, frontmatter+validBody, false)
	assert.True(t, v.Report.Valid, v.Report.Format())
	assert.Empty(t, v.Report.Issues)
	require.NotNil(t, v.Frontmatter)
	assert.Equal(t, []string{"src/"}, v.Frontmatter.ValidScope)
}

func TestValidateSpecContent_RequirementChecks(t *testing.T) {
	body := "```ison\nobject.spec\nkind name purpose\n\"llman.sdd.spec\" sample \"Sample.\"\n\n" +
		"table.requirements\nreq_id title statement\nweak Weak \"System should work.\"\nlonely Lonely \"System MUST be tested.\"\n\n" +
		"table.scenarios\nreq_id id given when then\nweak s1 \"\" \"x\" \"y\"\n```\n"

	v := ValidateSpecContent(specPath, frontmatter+body, false)
	require.False(t, v.Report.Valid)
	require.Len(t, v.Report.Issues, 2)

	assert.Equal(t, "sample/requirements[0]", v.Report.Issues[0].Path)
	assert.Equal(t, "Requirement must contain SHALL or MUST: System should work.", v.Report.Issues[0].Message)
	assert.Equal(t, "sample/requirements[1]", v.Report.Issues[1].Path)
	assert.Contains(t, v.Report.Issues[1].Message, "at least one scenario")
}

func TestValidateSpecContent_FrontmatterIssuesComeFirst(t *testing.T) {
	body := "```ison\nobject.spec\nkind name purpose\n\"llman.sdd.spec\" sample \"Sample.\"\n\n" +
		"table.requirements\nreq_id title statement\nweak Weak \"System should work.\"\n\n" +
		"table.scenarios\nreq_id id given when then\nweak s1 \"\" \"x\" \"y\"\n```\n"

	v := ValidateSpecContent(specPath, body, false)
	require.Len(t, v.Report.Issues, 2)
	assert.Equal(t, "frontmatter", v.Report.Issues[0].Path)
	assert.Equal(t, "sample/requirements[0]", v.Report.Issues[1].Path)
	assert.Nil(t, v.Frontmatter)
}

func TestValidateSpecContent_MissingBlocksHint(t *testing.T) {
	body := "# Sample\n\n## Purpose\n\nLegacy text.\n"
	v := ValidateSpecContent(specPath, frontmatter+body, false)

	require.Len(t, v.Report.Issues, 1)
	issue := v.Report.Issues[0]
	assert.Equal(t, "file", issue.Path)
	assert.Equal(t, LevelError, issue.Level)
	assert.True(t, strings.HasPrefix(issue.Message, "missing canonical blocks: ```ison"), issue.Message)
	assert.Contains(t, issue.Message, "table.requirements")
	assert.Contains(t, issue.Message, "missing ```ison code block")
}

func TestValidateSpecContent_ParseErrorWithoutHint(t *testing.T) {
	body := strings.Replace(validBody, "sample \"Sample capability.\"", "sample", 1)
	v := ValidateSpecContent(specPath, frontmatter+body, false)

	require.Len(t, v.Report.Issues, 1)
	assert.Equal(t, "file", v.Report.Issues[0].Path)
	assert.NotContains(t, v.Report.Issues[0].Message, "missing canonical blocks")
}

func TestMissingSections(t *testing.T) {
	missing := MissingSections("```ison\nobject.delta\nkind\nllman.sdd.delta\n```", DocumentTypeDelta)
	require.Len(t, missing, 1)
	assert.Equal(t, "table.ops", missing[0].Name)

	assert.Empty(t, MissingSections(validBody, DocumentTypeSpec))
}

func TestValidateDeltaPlan(t *testing.T) {
	scenario := []document.Scenario{{ReqID: "x", ID: "s", When: "w", Then: "t"}}
	change := func(id, statement string, scenarios []document.Scenario) archive.RequirementChange {
		return archive.RequirementChange{ReqID: id, Title: id, Statement: statement, Scenarios: scenarios}
	}

	tests := []struct {
		name     string
		plan     archive.DeltaPlan
		messages []string
	}{
		{
			name: "clean",
			plan: archive.DeltaPlan{
				Added:   []archive.RequirementChange{change("a", "It MUST work.", scenario)},
				Removed: []archive.Removal{{ReqID: "b"}},
				Renamed: []archive.Rename{{ReqID: "c", From: "Old", To: "New"}},
			},
		},
		{
			name: "weak statement and no scenarios",
			plan: archive.DeltaPlan{
				Modified: []archive.RequirementChange{change("a", "It works.", nil)},
			},
			messages: []string{
				`MODIFIED "a" must contain SHALL or MUST`,
				`MODIFIED "a": requirement must have at least one scenario`,
			},
		},
		{
			name: "duplicates within a section",
			plan: archive.DeltaPlan{
				Added: []archive.RequirementChange{
					change("a", "It MUST work.", scenario),
					change("a", "It MUST work.", scenario),
				},
				Renamed: []archive.Rename{
					{ReqID: "c", From: "Old", To: "New"},
					{ReqID: "d", From: "Old", To: "Newer"},
				},
			},
			messages: []string{
				"Duplicate requirement in ADDED: a",
				"Duplicate requirement in RENAMED FROM: Old",
			},
		},
		{
			name: "cross-section collisions",
			plan: archive.DeltaPlan{
				Added:    []archive.RequirementChange{change("a", "It MUST work.", scenario)},
				Modified: []archive.RequirementChange{change("b", "It MUST work.", scenario)},
				Removed:  []archive.Removal{{ReqID: "a"}, {ReqID: "b"}},
			},
			messages: []string{
				"Requirement present in multiple sections: b",
				"Requirement present in multiple sections: a",
			},
		},
		{
			name:     "declared rename without pairs",
			plan:     archive.DeltaPlan{RenameDeclared: true},
			messages: []string{"RENAMED section must include FROM/TO pairs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := ValidateDeltaPlan("auth", &tt.plan)
			var got []string
			for _, issue := range issues {
				assert.Equal(t, LevelError, issue.Level)
				assert.Equal(t, "auth/spec.md", issue.Path)
				got = append(got, issue.Message)
			}
			assert.Equal(t, tt.messages, got)
		})
	}
}

func TestNearestMatches(t *testing.T) {
	candidates := []string{"auth", "billing", "authz", "audit"}

	assert.Equal(t, []string{"auth"}, NearestMatches("atuh", candidates, 2))
	assert.Equal(t, []string{"auth", "authz"}, NearestMatches("auth", candidates, 2))
	assert.Equal(t, []string{"billing"}, NearestMatches("biling", candidates, 5))
	assert.Empty(t, NearestMatches("zzzzzzzz", candidates, 5))
	assert.Empty(t, NearestMatches("", candidates, 5))
	assert.Empty(t, NearestMatches("auth", candidates, 0))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"auth", "auth", 0},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
