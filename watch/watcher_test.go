package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360studio/llmanspec/workflow"
	"github.com/c360studio/llmanspec/workflow/validation"
)

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, events <-chan Event, d time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(d):
	}
}

func TestWatcher_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	specDir := filepath.Join(root, "specs", "auth")
	require.NoError(t, os.MkdirAll(specDir, 0o755))
	specPath := filepath.Join(specDir, "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("v1"), 0o644))

	w, err := NewWatcher(Config{DebounceDelay: 20 * time.Millisecond}, root, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// Rewriting identical content is not a change.
	require.NoError(t, os.WriteFile(specPath, []byte("v1"), 0o644))
	assertQuiet(t, w.Events(), 150*time.Millisecond)

	require.NoError(t, os.WriteFile(specPath, []byte("v2"), 0o644))
	ev := waitEvent(t, w.Events())
	assert.Equal(t, filepath.Join("specs", "auth", "spec.md"), ev.Path)
	assert.Equal(t, OpModify, ev.Operation)

	notes := filepath.Join(specDir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("ignored"), 0o644))
	assertQuiet(t, w.Events(), 150*time.Millisecond)

	changeDir := filepath.Join(root, "changes", "add-login")
	require.NoError(t, os.MkdirAll(changeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(changeDir, "proposal.md"), []byte("# p"), 0o644))
	ev = waitEvent(t, w.Events())
	assert.Equal(t, filepath.Join("changes", "add-login", "proposal.md"), ev.Path)
	assert.Equal(t, OpCreate, ev.Operation)

	require.NoError(t, os.Remove(specPath))
	ev = waitEvent(t, w.Events())
	assert.Equal(t, OpDelete, ev.Operation)

	require.NoError(t, w.Stop())
	for range w.Events() {
	}
	assert.Zero(t, w.DroppedEvents())
}

func TestWatcher_ContextCancelClosesEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(Config{FileExtensions: []string{"md"}}, t.TempDir(), nil)
	require.NoError(t, err)
	assert.True(t, w.extensions[".md"])

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
	require.NoError(t, w.Stop())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rel  string
		want Target
		ok   bool
	}{
		{"specs/auth/spec.md", Target{validation.ItemSpec, "auth"}, true},
		{"specs/auth/notes.md", Target{}, false},
		{"changes/add-login/proposal.md", Target{validation.ItemChange, "add-login"}, true},
		{"changes/add-login/specs/auth/spec.md", Target{validation.ItemChange, "add-login"}, true},
		{"changes/archive/2026-01-02-old/specs/auth/spec.md", Target{}, false},
		{"config.yaml", Target{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, ok := Classify(tt.rel)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type recordingValidator struct {
	mu    sync.Mutex
	calls []Target
}

func (v *recordingValidator) ValidateItem(_ context.Context, itemType validation.ItemType, id string, _ bool) (*validation.BulkReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, Target{Type: itemType, ID: id})
	return &validation.BulkReport{Items: []validation.Item{{ID: id, Type: itemType, Valid: true}}}, nil
}

func TestRunner_CoalescesBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	m := workflow.NewManager(root)
	require.NoError(t, os.MkdirAll(m.ChangePath("live"), 0o755))

	w := &Watcher{events: make(chan Event, 10)}
	w.events <- Event{Path: "specs/auth/spec.md", Operation: OpModify}
	w.events <- Event{Path: "changes/live/specs/auth/spec.md", Operation: OpModify}
	w.events <- Event{Path: "changes/live/tasks.md", Operation: OpCreate}
	w.events <- Event{Path: "changes/gone/proposal.md", Operation: OpDelete}
	w.events <- Event{Path: "specs/old/spec.md", Operation: OpDelete}
	w.events <- Event{Path: "config.yaml", Operation: OpModify}
	close(w.events)

	v := &recordingValidator{}
	var reports int
	r := NewRunner(w, v, m, WithStrict(true), WithReportHandler(func(*validation.BulkReport) { reports++ }))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []Target{
		{validation.ItemSpec, "auth"},
		{validation.ItemChange, "live"},
	}, v.calls)
	assert.Equal(t, 2, reports)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &Watcher{events: make(chan Event)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRunner(w, &recordingValidator{}, workflow.NewManager(t.TempDir())).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
