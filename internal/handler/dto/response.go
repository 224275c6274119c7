package dto

import (
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/service"
)

// TaskResponse represents a task with its derived status.
type TaskResponse struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartAt      time.Time `json:"start_at"`
	DeadlineAt   time.Time `json:"deadline_at"`
	Status       string    `json:"status"`
	Responsibles []string  `json:"responsibles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// NotificationResponse represents one notification of the caller.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	EventID   string    `json:"event_id"`
	TaskID    string    `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	IsUnread  bool      `json:"is_unread"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationsListResponse represents the response for GET /notifications.
type NotificationsListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}

// UnreadCountResponse represents the response for GET /notifications/unread-count.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// ToTaskResponse converts a resolved task view to TaskResponse.
func ToTaskResponse(view service.TaskView) TaskResponse {
	task := view.Task
	responsibles := task.Responsibles
	if responsibles == nil {
		responsibles = []string{}
	}
	return TaskResponse{
		ID:           task.ID,
		TeamID:       task.TeamID,
		Title:        task.Title,
		Description:  task.Description,
		StartAt:      task.StartAt,
		DeadlineAt:   task.DeadlineAt,
		Status:       string(view.Status),
		Responsibles: responsibles,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}

// ToNotificationResponse converts domain.Notification to NotificationResponse.
func ToNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Kind:      string(n.Event.Kind),
		EventID:   n.Event.EventID,
		TaskID:    n.Event.TaskID,
		TaskTitle: n.Event.TaskTitle,
		IsUnread:  n.IsUnread,
		CreatedAt: n.CreatedAt,
	}
}

// ToNotificationsListResponse converts a notification list and derives the
// unread count from it.
func ToNotificationsListResponse(notifications []*domain.Notification) NotificationsListResponse {
	resp := NotificationsListResponse{
		Notifications: make([]NotificationResponse, len(notifications)),
	}
	for i, n := range notifications {
		resp.Notifications[i] = ToNotificationResponse(n)
		if n.IsUnread {
			resp.UnreadCount++
		}
	}
	return resp
}

// ToDomainNotification converts a response back into a domain value. The
// client package uses it to rebuild its cache from the wire format.
func ToDomainNotification(r NotificationResponse, recipientID string) domain.Notification {
	return domain.Notification{
		ID:          r.ID,
		RecipientID: recipientID,
		Event: domain.EventRef{
			EventID:   r.EventID,
			Kind:      domain.NotificationKind(r.Kind),
			TaskID:    r.TaskID,
			TaskTitle: r.TaskTitle,
		},
		IsUnread:  r.IsUnread,
		CreatedAt: r.CreatedAt,
	}
}
