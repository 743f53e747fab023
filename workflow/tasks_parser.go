package workflow

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedTask represents a task extracted from tasks.md.
type ParsedTask struct {
	// ID is the task identifier (e.g., "1.1", "2.3")
	ID string

	// Section is the section header the task belongs to
	Section string

	// Description is the task description text
	Description string

	// Completed indicates if the task checkbox is checked
	Completed bool
}

// taskLinePattern matches markdown checkbox items: - [ ] or * [x]
var taskLinePattern = regexp.MustCompile(`^[-*]\s*\[([ xX])\]\s*(.*)$`)

// sectionPattern matches markdown headers: ## Section Name
var sectionPattern = regexp.MustCompile(`^##\s+(.+)$`)

// ParseTasks parses tasks.md checkboxes, numbering them per section.
// Checkboxes before the first section go under "Tasks".
func ParseTasks(content string) []ParsedTask {
	var (
		tasks      []ParsedTask
		section    string
		sectionNum int
		taskNum    int
	)

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := sectionPattern.FindStringSubmatch(trimmed); m != nil {
			section = m[1]
			sectionNum++
			taskNum = 0
			continue
		}

		m := taskLinePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		if section == "" {
			section = "Tasks"
			sectionNum = 1
		}
		taskNum++
		tasks = append(tasks, ParsedTask{
			ID:          strconv.Itoa(sectionNum) + "." + strconv.Itoa(taskNum),
			Section:     section,
			Description: strings.TrimSpace(m[2]),
			Completed:   m[1] != " ",
		})
	}

	return tasks
}

// GetTaskStats returns summary statistics for parsed tasks.
func GetTaskStats(tasks []ParsedTask) (total, completed int) {
	total = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return total, completed
}
