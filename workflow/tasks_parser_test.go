package workflow

import (
	"testing"
)

func TestParseTasks(t *testing.T) {
	content := `# Implementation Tasks

## Parser

- [ ] Tokenize quoted strings
- [x] Merge repeated blocks
- [X] Reject legacy JSON payloads

## Archive

* [ ] Move change into archive
- [ ] Report totals
`

	tasks := ParseTasks(content)

	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}

	if tasks[0].ID != "1.1" {
		t.Errorf("task 0 ID = %q, want %q", tasks[0].ID, "1.1")
	}
	if tasks[0].Section != "Parser" {
		t.Errorf("task 0 Section = %q, want %q", tasks[0].Section, "Parser")
	}
	if tasks[0].Description != "Tokenize quoted strings" {
		t.Errorf("task 0 Description = %q, want %q", tasks[0].Description, "Tokenize quoted strings")
	}
	if tasks[0].Completed {
		t.Error("task 0 should not be completed")
	}

	if !tasks[1].Completed || !tasks[2].Completed {
		t.Error("tasks 1 and 2 should be completed")
	}

	if tasks[3].Section != "Archive" {
		t.Errorf("task 3 Section = %q, want %q", tasks[3].Section, "Archive")
	}
	if tasks[3].ID != "2.1" {
		t.Errorf("task 3 ID = %q, want %q", tasks[3].ID, "2.1")
	}
}

func TestParseTasks_NoSection(t *testing.T) {
	tasks := ParseTasks("- [x] one\n- [ ] two\nplain text\n")

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[1].ID != "1.2" || tasks[1].Section != "Tasks" {
		t.Errorf("task 1 = %+v, want ID 1.2 in section Tasks", tasks[1])
	}
}

func TestGetTaskStats(t *testing.T) {
	total, completed := GetTaskStats(ParseTasks("- [x] a\n- [ ] b\n- [x] c\n"))
	if total != 3 || completed != 2 {
		t.Errorf("GetTaskStats() = (%d, %d), want (3, 2)", total, completed)
	}
}

func TestTaskStatusFor(t *testing.T) {
	tests := []struct {
		completed, total int
		want             TaskStatus
	}{
		{0, 0, TaskStatusNone},
		{1, 3, TaskStatusInProgress},
		{3, 3, TaskStatusComplete},
	}
	for _, tt := range tests {
		if got := TaskStatusFor(tt.completed, tt.total); got != tt.want {
			t.Errorf("TaskStatusFor(%d, %d) = %q, want %q", tt.completed, tt.total, got, tt.want)
		}
	}
}
