package domain

import "time"

// TaskStatus is the lifecycle state of a task derived from its dates.
// It is never persisted.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusComplete   TaskStatus = "Complete"
)

// IsValid checks if the status is one of the derived values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusComplete:
		return true
	default:
		return false
	}
}

// Task represents a unit of work owned by a team.
type Task struct {
	ID          string
	TeamID      string
	Title       string
	Description string
	StartAt     time.Time
	DeadlineAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Responsibles holds the member ids from the task's assignment records.
	Responsibles []string
}
