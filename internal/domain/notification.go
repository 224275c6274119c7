package domain

import "time"

// NotificationKind identifies the event a notification originates from.
type NotificationKind string

const (
	NotificationKindTaskAssigned NotificationKind = "task-assigned"
	NotificationKindTaskUpdated  NotificationKind = "task-updated"
)

// IsValid checks if the kind is one of the known values.
func (k NotificationKind) IsValid() bool {
	return k == NotificationKindTaskAssigned || k == NotificationKindTaskUpdated
}

// EventRef references the task event a notification was created for.
// TaskTitle is a snapshot taken when the event was emitted.
type EventRef struct {
	EventID   string
	Kind      NotificationKind
	TaskID    string
	TaskTitle string
}

// Validate reports ErrInvalidEventRef when a required field is missing.
func (r EventRef) Validate() error {
	if r.EventID == "" || r.TaskID == "" || !r.Kind.IsValid() {
		return ErrInvalidEventRef
	}
	return nil
}

// Notification is a single member's record of a task event.
type Notification struct {
	ID          string
	RecipientID string
	Event       EventRef
	IsUnread    bool
	CreatedAt   time.Time
}

// IsOwnedBy checks if the notification belongs to the given member.
func (n *Notification) IsOwnedBy(memberID string) bool {
	return n.RecipientID == memberID
}

// TaskEvent is emitted by the task layer after a successful commit.
// RecipientIDs may contain duplicates; fan-out applies set semantics.
type TaskEvent struct {
	ID           string
	Kind         NotificationKind
	TaskID       string
	TaskTitle    string
	RecipientIDs []string
}

// Ref returns the reference stored on each recipient's notification.
func (e TaskEvent) Ref() EventRef {
	return EventRef{
		EventID:   e.ID,
		Kind:      e.Kind,
		TaskID:    e.TaskID,
		TaskTitle: e.TaskTitle,
	}
}
