package service

import (
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
)

// ResolveStatus derives the lifecycle state of a task from its dates.
// The start boundary counts as started and the deadline boundary as
// complete. now must come from the caller so the result is reproducible.
func ResolveStatus(start, deadline, now time.Time) domain.TaskStatus {
	if start.After(now) {
		return domain.TaskStatusPending
	}
	if deadline.After(now) {
		return domain.TaskStatusInProgress
	}
	return domain.TaskStatusComplete
}

// Clock returns the current time. Services take one so the status of every
// task in a response is resolved against the same instant.
type Clock func() time.Time

// SystemClock reads the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}
