package dto

import "time"

// TaskRequest is the request body for POST /tasks and PUT /tasks/{id}.
type TaskRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartAt      time.Time `json:"start_at"`
	DeadlineAt   time.Time `json:"deadline_at"`
	Responsibles []string  `json:"responsibles"`
}
