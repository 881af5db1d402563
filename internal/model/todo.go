package model

import "time"

// Todo is a single task owned by one user.
//
// OwnerID is the user ID taken from the validated session token, never from
// the request body. Every non-admin query filters on it.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Complete    bool      `json:"complete"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats is the aggregate view returned to administrators.
type Stats struct {
	TotalUsers     int `json:"total_users"`
	TotalTodos     int `json:"total_todos"`
	CompletedTodos int `json:"completed_todos"`
	PendingTodos   int `json:"pending_todos"`
}
