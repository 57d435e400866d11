package model

import "time"

// Task mirrors the `tasks` table.  UserID is the owning account; it is set
// from the authenticated principal at creation and never changes afterwards.
type Task struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}
