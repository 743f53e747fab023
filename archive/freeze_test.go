package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/llmanspec/workflow"
)

func setupArchive(t *testing.T, names ...string) (*workflow.Manager, string) {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		writeFile(t, root, filepath.Join("llmanspec/changes/archive", name, "proposal.md"), "# "+name+"\n")
		writeFile(t, root, filepath.Join("llmanspec/changes/archive", name, "specs/auth/spec.md"), addDelta)
	}
	return workflow.NewManager(root), root
}

func TestFreezer_Candidates(t *testing.T) {
	m, root := setupArchive(t, "2026-01-01-a", "2026-01-02-b", "2026-01-03-c")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "llmanspec/changes/archive/notes"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "llmanspec/changes/archive", ThawDir), 0755))
	f := NewFreezer(m, nil)

	tests := []struct {
		name string
		opts FreezeOptions
		want []string
	}{
		{"all", FreezeOptions{}, []string{"2026-01-01-a", "2026-01-02-b", "2026-01-03-c"}},
		{"before and keep recent", FreezeOptions{Before: time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), KeepRecent: 1}, []string{"2026-01-01-a", "2026-01-02-b"}},
		{"before is exclusive", FreezeOptions{Before: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}, []string{"2026-01-01-a"}},
		{"keep everything", FreezeOptions{KeepRecent: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Candidates(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFreezer_MissingArchiveDir(t *testing.T) {
	f := NewFreezer(workflow.NewManager(t.TempDir()), nil)
	_, err := f.Freeze(context.Background(), FreezeOptions{})
	assert.ErrorIs(t, err, ErrArchiveDirMissing)

	_, err = f.Thaw(context.Background(), ThawOptions{})
	assert.ErrorIs(t, err, ErrFreezeFileMissing)
}

func TestFreezer_DryRunKeepsDirectories(t *testing.T) {
	m, _ := setupArchive(t, "2026-01-01-a")
	f := NewFreezer(m, nil)

	report, err := f.Freeze(context.Background(), FreezeOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01-a"}, report.Changes)
	assert.NoFileExists(t, f.FreezePath())
	assert.DirExists(t, filepath.Join(m.ArchivePath(), "2026-01-01-a"))
}

func TestFreezer_FreezeAndThaw(t *testing.T) {
	m, root := setupArchive(t, "2026-01-01-a", "2026-01-02-b")
	f := NewFreezer(m, nil)
	ctx := context.Background()

	report, err := f.Freeze(ctx, FreezeOptions{KeepRecent: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01-a"}, report.Changes)
	assert.FileExists(t, f.FreezePath())
	assert.NoDirExists(t, filepath.Join(m.ArchivePath(), "2026-01-01-a"))
	assert.DirExists(t, filepath.Join(m.ArchivePath(), "2026-01-02-b"))

	// A second freeze merges into the existing archive.
	writeFile(t, root, "llmanspec/changes/archive/2026-01-03-c/proposal.md", "# c\n")
	_, err = f.Freeze(ctx, FreezeOptions{})
	require.NoError(t, err)
	ids, err := m.ArchivedChangeIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	thawed, err := f.Thaw(ctx, ThawOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01-a", "2026-01-02-b", "2026-01-03-c"}, thawed.Changes)
	assert.Equal(t, filepath.Join(m.ArchivePath(), ThawDir), thawed.Dest)
	assert.Equal(t, addDelta, readFile(t, filepath.Join(thawed.Dest, "2026-01-01-a/specs/auth/spec.md")))

	dest := filepath.Join(t.TempDir(), "restore")
	writeFile(t, dest, "2026-01-02-b/stale.md", "old\n")
	thawed, err = f.Thaw(ctx, ThawOptions{Changes: []string{"2026-01-02-b"}, Dest: dest})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-02-b"}, thawed.Changes)
	assert.Equal(t, "# 2026-01-02-b\n", readFile(t, filepath.Join(dest, "2026-01-02-b/proposal.md")))
	assert.NoFileExists(t, filepath.Join(dest, "2026-01-02-b/stale.md"))
	assert.NoDirExists(t, filepath.Join(dest, "2026-01-01-a"))

	_, err = f.Thaw(ctx, ThawOptions{Changes: []string{"2026-09-09-missing"}, Dest: dest})
	assert.ErrorIs(t, err, ErrNotFrozen)

	_, err = f.Thaw(ctx, ThawOptions{Changes: []string{"../escape"}})
	assert.ErrorIs(t, err, workflow.ErrInvalidID)
}

func TestFreezer_NegativeKeepRecent(t *testing.T) {
	m, _ := setupArchive(t, "2026-01-01-a")
	_, err := NewFreezer(m, nil).Freeze(context.Background(), FreezeOptions{KeepRecent: -1})
	require.Error(t, err)
}
