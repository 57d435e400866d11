package model

import (
	"database/sql"
	"time"
)

// User represents an application user record as stored in the `users`
// table.  Emails are persisted lowercased and trimmed so lookups are
// case-insensitive.  PasswordHash is a bcrypt hash and is never sent to
// clients; handlers define their own response types with json tags.
//
// ResetTokenHash and ResetTokenExpiresAt hold the SHA-256 digest of an
// outstanding password-reset token and its expiry.  They are either both
// set or both NULL: issuance writes them together and a successful
// redemption clears them together in the same statement.
type User struct {
	ID                  uint64
	Name                string
	Email               string
	PasswordHash        string
	ResetTokenHash      sql.NullString
	ResetTokenExpiresAt sql.NullTime
	PasswordChangedAt   sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
