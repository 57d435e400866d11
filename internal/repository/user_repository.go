package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/taskflo/taskflo/internal/model"
	"github.com/taskflo/taskflo/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user with a freshly hashed password and returns its ID.
func (r *UserRepo) Create(ctx context.Context, name, email, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?,?,?)",
		name, email, hash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,password_hash,reset_token_hash,reset_token_expires_at,password_changed_at,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ResetTokenHash, &u.ResetTokenExpiresAt, &u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,password_hash,reset_token_hash,reset_token_expires_at,password_changed_at,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ResetTokenHash, &u.ResetTokenExpiresAt, &u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// SetResetCredential stores the digest and expiry of a newly issued reset
// token on the user row.  Both columns are written in one statement, and an
// earlier unredeemed digest is simply overwritten, which invalidates any
// previously mailed link.
func (r *UserRepo) SetResetCredential(ctx context.Context, userID uint64, digest string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=?, reset_token_expires_at=? WHERE id=?",
		digest, exp.UTC(), userID)
	return err
}

// ResetPasswordByDigest atomically redeems a reset credential: it matches
// the stored digest while it is still unexpired, swaps in the new password
// hash, stamps password_changed_at and clears both token columns, all in a
// single conditional UPDATE.  The match-and-clear is what makes the token
// single use: with two concurrent redemptions the row matches exactly once,
// so one caller gets true and the other false.  The leading SELECT only
// learns which account holds the credential, so the caller can revoke that
// user's sessions; the conditional UPDATE stays the sole arbiter of who
// wins.
func (r *UserRepo) ResetPasswordByDigest(ctx context.Context, digest, newHash string) (uint64, bool, error) {
	var userID uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE reset_token_hash=? AND reset_token_expires_at > UTC_TIMESTAMP() LIMIT 1",
		digest).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE users
		 SET password_hash=?, password_changed_at=UTC_TIMESTAMP(),
		     reset_token_hash=NULL, reset_token_expires_at=NULL
		 WHERE reset_token_hash=? AND reset_token_expires_at > UTC_TIMESTAMP()`,
		newHash, digest)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n != 1 {
		return 0, false, nil
	}
	return userID, true, nil
}
