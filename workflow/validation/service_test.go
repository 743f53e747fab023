package validation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/llmanspec/archive"
	"github.com/c360studio/llmanspec/staleness"
	"github.com/c360studio/llmanspec/workflow"
)

const validDelta = "```ison\nobject.delta\nkind\n\"llman.sdd.delta\"\n\n" +
	"table.ops\nop req_id title statement from to name\nadd_requirement mfa MFA \"Users MUST use MFA.\" ~ ~ ~\n\n" +
	"table.op_scenarios\nreq_id id given when then\nmfa otp \"\" \"otp entered\" \"access granted\"\n```\n"

const conflictingDelta = "```ison\nobject.delta\nkind\n\"llman.sdd.delta\"\n\n" +
	"table.ops\nop req_id title statement from to name\nremove_requirement mfa ~ ~ ~ ~ ~\n\n" +
	"table.op_scenarios\nreq_id id given when then\n```\n"

type stubGit struct {
	diff   []string
	status string
}

func (g *stubGit) RefExists(_ context.Context, ref string) bool { return ref == "origin/main" }
func (g *stubGit) MergeBase(context.Context, string, string) (string, error) {
	return "abc123", nil
}
func (g *stubGit) DiffNames(context.Context, string) ([]string, error) { return g.diff, nil }
func (g *stubGit) StatusPorcelain(context.Context) (string, error)     { return g.status, nil }

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestService(t *testing.T, git *stubGit) (*Service, *workflow.Manager, string) {
	t.Helper()
	root := t.TempDir()
	writeProjectFile(t, root, "llmanspec/specs/sample/spec.md", frontmatter+validBody)
	writeProjectFile(t, root, "llmanspec/changes/add-mfa/specs/auth/spec.md", validDelta)

	m := workflow.NewManager(root)
	ev := &staleness.Evaluator{Git: git, Root: root}
	return NewService(m, ev), m, root
}

func TestService_ValidateItemSpec(t *testing.T) {
	svc, _, _ := newTestService(t, &stubGit{})

	report, err := svc.ValidateItem(context.Background(), ItemSpec, "sample", false)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)

	item := report.Items[0]
	assert.True(t, item.Valid)
	assert.Equal(t, staleness.StatusOK, item.Staleness.Status)
	assert.Equal(t, Counts{Items: 1, Passed: 1}, report.Summary.Totals)
	assert.Equal(t, ReportVersion, report.Version)
	assert.NotEmpty(t, report.RunID)
}

func TestService_NilLoggerKeepsDefault(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "llmanspec/specs/sample/spec.md", frontmatter+validBody)

	svc := NewService(workflow.NewManager(root), nil, WithLogger(nil))
	require.NotNil(t, svc.logger)

	_, err := svc.ValidateAll(context.Background(), true, true, false)
	require.NoError(t, err)
}

func TestService_StaleSpecStrict(t *testing.T) {
	svc, _, _ := newTestService(t, &stubGit{diff: []string{"src/main.go"}})
	ctx := context.Background()

	lenient, err := svc.ValidateItem(ctx, ItemSpec, "sample", false)
	require.NoError(t, err)
	item := lenient.Items[0]
	assert.True(t, item.Valid, "staleness is advisory")
	assert.Equal(t, staleness.StatusStale, item.Staleness.Status)
	require.Len(t, item.Issues, 1)
	assert.Equal(t, LevelWarning, item.Issues[0].Level)
	assert.Equal(t, "sample/staleness", item.Issues[0].Path)

	strict, err := svc.ValidateItem(ctx, ItemSpec, "sample", true)
	require.NoError(t, err)
	assert.False(t, strict.Items[0].Valid)
	assert.Equal(t, LevelError, strict.Items[0].Issues[0].Level)
	assert.Equal(t, 1, strict.Failed())
}

func TestService_ValidateItemChange(t *testing.T) {
	svc, _, root := newTestService(t, &stubGit{})
	ctx := context.Background()

	report, err := svc.ValidateItem(ctx, ItemChange, "add-mfa", false)
	require.NoError(t, err)
	assert.True(t, report.Items[0].Valid, report.Items[0].Issues)
	assert.Equal(t, staleness.StatusNotApplicable, report.Items[0].Staleness.Status)

	writeProjectFile(t, root, "llmanspec/changes/add-mfa/specs/auth/remove.md", conflictingDelta)
	report, err = svc.ValidateItem(ctx, ItemChange, "add-mfa", false)
	require.NoError(t, err)
	require.False(t, report.Items[0].Valid)
	assert.Equal(t, "Requirement present in multiple sections: mfa", report.Items[0].Issues[0].Message)
}

func TestService_ValidateAll(t *testing.T) {
	svc, _, root := newTestService(t, &stubGit{})
	writeProjectFile(t, root, "llmanspec/changes/empty/proposal.md", "# Empty\n")

	report, err := svc.ValidateAll(context.Background(), true, true, false)
	require.NoError(t, err)

	var ids []string
	for _, item := range report.Items {
		ids = append(ids, string(item.Type)+"/"+item.ID)
	}
	assert.Equal(t, []string{"change/add-mfa", "change/empty", "spec/sample"}, ids)
	assert.Equal(t, Counts{Items: 3, Passed: 2, Failed: 1}, report.Summary.Totals)
	assert.Equal(t, Counts{Items: 2, Passed: 1, Failed: 1}, report.Summary.ByType[ItemChange])
	assert.Equal(t, Counts{Items: 1, Passed: 1}, report.Summary.ByType[ItemSpec])

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "1.0", decoded["version"])
	item := decoded["items"].([]any)[0].(map[string]any)
	assert.Contains(t, item, "durationMs")
	assert.Contains(t, item, "staleness")
}

func TestService_ValidateAllEmpty(t *testing.T) {
	svc := NewService(workflow.NewManager(t.TempDir()), nil)
	report, err := svc.ValidateAll(context.Background(), false, true, false)
	require.NoError(t, err)
	assert.Empty(t, report.Items)
	assert.Equal(t, map[ItemType]Counts{ItemSpec: {}}, report.Summary.ByType)
}

func TestService_Resolve(t *testing.T) {
	svc, _, root := newTestService(t, &stubGit{})

	typ, err := svc.Resolve("sample", "")
	require.NoError(t, err)
	assert.Equal(t, ItemSpec, typ)

	typ, err = svc.Resolve("add-mfa", "")
	require.NoError(t, err)
	assert.Equal(t, ItemChange, typ)

	_, err = svc.Resolve("sampel", "")
	require.ErrorIs(t, err, ErrUnknownItem)
	var unknown *UnknownItemError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"sample"}, unknown.Suggestions)
	assert.Contains(t, err.Error(), "did you mean: sample?")

	_, err = svc.Resolve("sample", ItemChange)
	assert.ErrorIs(t, err, ErrUnknownItem)

	writeProjectFile(t, root, "llmanspec/changes/sample/proposal.md", "# Sample\n")
	_, err = svc.Resolve("sample", "")
	assert.ErrorIs(t, err, ErrAmbiguousItem)
	typ, err = svc.Resolve("sample", ItemSpec)
	require.NoError(t, err)
	assert.Equal(t, ItemSpec, typ)
}

func TestService_RejectsInvalidID(t *testing.T) {
	svc, _, _ := newTestService(t, &stubGit{})
	_, err := svc.ValidateItem(context.Background(), ItemSpec, "../etc", false)
	assert.ErrorIs(t, err, workflow.ErrInvalidID)
}

func TestValidateChange(t *testing.T) {
	t.Run("missing specs directory", func(t *testing.T) {
		report := ValidateChange(t.TempDir(), false)
		require.False(t, report.Valid)
		assert.Equal(t, "specs", report.Issues[0].Path)
	})

	t.Run("unparsable delta", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "specs/auth/spec.md", "```ison\n{\"ops\": []}\n```\n")
		report := ValidateChange(dir, false)
		require.False(t, report.Valid)
		assert.Equal(t, "auth/spec.md", report.Issues[0].Path)
		assert.Contains(t, report.Issues[0].Message, "legacy JSON")
		assert.Equal(t, "specs", report.Issues[len(report.Issues)-1].Path)
	})
}

func TestArchiveGate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "llmanspec", "specs", "sample", "spec.md")

	t.Run("valid rebuilt spec", func(t *testing.T) {
		gate := NewArchiveGate(&staleness.Evaluator{Git: &stubGit{diff: []string{"src/main.go"}}})
		assert.NoError(t, gate.CheckRebuilt(ctx, "sample", path, frontmatter+validBody))
	})

	t.Run("dirty tree fails strict gate", func(t *testing.T) {
		gate := NewArchiveGate(&staleness.Evaluator{Git: &stubGit{status: " M src/main.go"}})
		err := gate.CheckRebuilt(ctx, "sample", path, frontmatter+validBody)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRebuiltInvalid)
		assert.True(t, IsGateError(err))
		assert.Contains(t, err.Error(), "sample/staleness: ")
	})

	t.Run("weak requirement fails", func(t *testing.T) {
		body := "```ison\nobject.spec\nkind name purpose\n\"llman.sdd.spec\" sample \"Sample.\"\n\n" +
			"table.requirements\nreq_id title statement\nweak Weak \"System should work.\"\n\n" +
			"table.scenarios\nreq_id id given when then\nweak s1 \"\" \"x\" \"y\"\n```\n"
		err := NewArchiveGate(nil).CheckRebuilt(ctx, "sample", path, frontmatter+body)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sample/requirements[0]: Requirement must contain SHALL or MUST")
	})

	t.Run("archive surfaces gate errors", func(t *testing.T) {
		root := t.TempDir()
		writeProjectFile(t, root, "llmanspec/changes/add-mfa/specs/auth/spec.md", validDelta)
		m := workflow.NewManager(root)
		gate := NewArchiveGate(&staleness.Evaluator{Git: &stubGit{status: "?? scratch.txt"}, Root: root})

		_, err := archive.NewArchiver(m, gate).Archive(ctx, archive.ArchiveOptions{ChangeID: "add-mfa"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRebuiltInvalid)
		assert.NoFileExists(t, m.SpecPath("auth"))
		assert.True(t, m.ChangeExists("add-mfa"))
	})
}
