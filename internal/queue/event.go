// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into outgoing mail.
package queue

// Queue names; declared durable by both publisher and consumer.
const (
	PasswordResetQueue = "mail.password_reset"
	TaskCreatedQueue   = "mail.task_created"
)

// PasswordResetRequestedEvent is published when a reset token has been
// issued for an existing account.  Token is the raw secret on its way to
// the user's mailbox; it travels only over the broker, is never written to
// application logs and is useless once redeemed or expired.
type PasswordResetRequestedEvent struct {
	Email          string `json:"email"`
	Token          string `json:"token"`
	ExpiresMinutes int    `json:"expires_minutes"`
	RequestedAt    string `json:"requested_at"`
}

// TaskCreatedEvent is published after a task is stored, so the owner gets a
// confirmation mail without the request waiting on delivery.
type TaskCreatedEvent struct {
	Email       string `json:"email"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}
