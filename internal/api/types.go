// Package api provides typed bindings for the Aido REST API on top of the
// authenticated client.
package api

import "time"

// Todo is a task owned by the authenticated user.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	CategoryID  string     `json:"categoryId,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Friend is a user the authenticated user follows.
type Friend struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	FollowedAt  time.Time `json:"followedAt"`
}

// Notification is an in-app notification (cheer, nudge, reminder, ...).
type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// User is the authenticated user's profile.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
