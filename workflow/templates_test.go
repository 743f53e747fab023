package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasksTemplate_Parses(t *testing.T) {
	tasks := ParseTasks(TasksTemplate("Add sessions", []string{"Schema", "Handlers"}))
	require.Len(t, tasks, 2)
	assert.Equal(t, "1. Schema", tasks[0].Section)
	assert.Equal(t, "2.1", tasks[1].ID)
	assert.False(t, tasks[1].Completed)

	tasks = ParseTasks(TasksTemplate("Defaults", nil))
	assert.Len(t, tasks, len(DefaultTaskSections))
}

func TestProposalTemplate(t *testing.T) {
	content := ProposalTemplate("Add sessions", "Idle sessions never expire.")
	assert.Contains(t, content, "# Add sessions\n")
	assert.Contains(t, content, "## Why\n\nIdle sessions never expire.\n")
	assert.Contains(t, content, "## What Changes")

	assert.Contains(t, ProposalTemplate("x", "  "), "Describe the problem")
}

func TestManager_CreateChange(t *testing.T) {
	m := NewManager(t.TempDir())

	files, err := m.CreateChange("add-sessions", NewChangeOptions{Why: "Sessions leak."})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(m.ChangePath("add-sessions"), ProposalFile), files[0])

	info, err := os.Stat(filepath.Join(m.ChangePath("add-sessions"), ChangeSpecsDir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	changes, err := m.ListChanges()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].HasProposal)
	assert.Equal(t, len(DefaultTaskSections), changes[0].TotalTasks)
	assert.Zero(t, changes[0].DeltaCount)

	_, err = m.CreateChange("add-sessions", NewChangeOptions{})
	assert.True(t, errors.Is(err, ErrChangeExists))

	_, err = m.CreateChange("../escape", NewChangeOptions{})
	assert.True(t, errors.Is(err, ErrInvalidID))

	files, err = m.CreateChange("no-tasks", NewChangeOptions{Title: "No tasks", SkipTasks: true})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestProposalTitle(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"# Add sessions\n\n## Why\n", "Add sessions"},
		{"intro\n  # Change: Rotate keys \n", "Rotate keys"},
		{"## Why\nno title\n", "fallback"},
		{"", "fallback"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProposalTitle(tt.content, "fallback"))
	}
	assert.Equal(t, "Add sessions", ProposalTitle(ProposalTemplate("Add sessions", ""), "x"))
}
