// Package workflow manages the llmanspec directory tree: authoritative
// specs, pending changes with their delta documents, and the archive.
package workflow

import "time"

// TaskStatus summarizes the checkbox progress of a change's tasks.md.
type TaskStatus string

const (
	// TaskStatusNone indicates the change has no tasks.md or no checkboxes.
	TaskStatusNone TaskStatus = "no-tasks"
	// TaskStatusInProgress indicates some tasks remain unchecked.
	TaskStatusInProgress TaskStatus = "in-progress"
	// TaskStatusComplete indicates every task is checked.
	TaskStatusComplete TaskStatus = "complete"
)

// TaskStatusFor derives a status from task counts.
func TaskStatusFor(completed, total int) TaskStatus {
	switch {
	case total == 0:
		return TaskStatusNone
	case completed == total:
		return TaskStatusComplete
	default:
		return TaskStatusInProgress
	}
}

// SpecSummary is one entry of ListSpecs.
type SpecSummary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	RequirementCount int       `json:"requirementCount"`
	Path             string    `json:"path"`
	LastModified     time.Time `json:"lastModified"`
	// ParseError is set when the spec body could not be read; the
	// requirement count is then zero.
	ParseError string `json:"parseError,omitempty"`
}

// ChangeSummary is one entry of ListChanges.
type ChangeSummary struct {
	ID             string     `json:"name"`
	CompletedTasks int        `json:"completedTasks"`
	TotalTasks     int        `json:"totalTasks"`
	DeltaCount     int        `json:"deltaCount"`
	HasProposal    bool       `json:"hasProposal"`
	LastModified   time.Time  `json:"lastModified"`
	Status         TaskStatus `json:"status"`
}

// DeltaFile locates one delta document inside a change.
type DeltaFile struct {
	SpecID string
	Path   string
}
