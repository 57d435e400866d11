package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflo/taskflo/internal/model"
	"github.com/taskflo/taskflo/internal/queue"
	"github.com/taskflo/taskflo/internal/utils"
)

// ErrInvalidOrExpired is the single redemption failure signal.  Wrong
// secret, expired secret, already-redeemed secret and no-such-secret all
// collapse into it so callers cannot learn which case they hit.
var ErrInvalidOrExpired = errors.New("invalid or expired token")

// AccountStore is the slice of user persistence the recovery flow depends
// on.  *repository.UserRepo satisfies it; tests supply fakes.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	SetResetCredential(ctx context.Context, userID uint64, digest string, exp time.Time) error
	ResetPasswordByDigest(ctx context.Context, digest, newHash string) (uint64, bool, error)
}

// SessionStore revokes a user's outstanding refresh tokens.
// *repository.TokenRepo satisfies it.
type SessionStore interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// ResetDispatcher hands a freshly issued reset secret to the out-of-band
// delivery channel.  *Notifier satisfies it.
type ResetDispatcher interface {
	PasswordResetRequested(ctx context.Context, ev queue.PasswordResetRequestedEvent) error
}

// Recovery orchestrates the password-recovery flow.  Collaborators are
// injected at construction so the flow is testable against fakes and holds
// no global state.
type Recovery struct {
	accounts AccountStore
	sessions SessionStore
	dispatch ResetDispatcher
	log      *zap.Logger
	ttl      time.Duration
	cost     int
}

func NewRecovery(accounts AccountStore, sessions SessionStore, dispatch ResetDispatcher, log *zap.Logger, ttlMin, bcryptCost int) *Recovery {
	return &Recovery{
		accounts: accounts,
		sessions: sessions,
		dispatch: dispatch,
		log:      log,
		ttl:      time.Duration(ttlMin) * time.Minute,
		cost:     bcryptCost,
	}
}

// RequestReset issues a reset credential for the account behind email, if
// one exists.  It deliberately has no return value: unknown address, store
// outage and dispatch outage all end the same way as success, so the
// caller's generic acknowledgement is the only externally observable
// outcome and registered addresses cannot be enumerated.  A reissue for an
// account with an outstanding token overwrites the stored digest, killing
// the earlier link.
func (s *Recovery) RequestReset(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error("reset request: account lookup failed", zap.Error(err))
		}
		return
	}

	tok, err := utils.NewResetToken(s.ttl)
	if err != nil {
		s.log.Error("reset request: token generation failed", zap.Error(err))
		return
	}
	if err := s.accounts.SetResetCredential(ctx, u.ID, tok.Digest, tok.Exp); err != nil {
		s.log.Error("reset request: persisting credential failed", zap.Error(err))
		return
	}

	// Fire and forget: delivery shares no fate with the request, so the
	// response timing does not depend on the broker and a dispatch failure
	// cannot leak through the generic acknowledgement.
	ev := queue.PasswordResetRequestedEvent{
		Email:          u.Email,
		Token:          tok.Raw,
		ExpiresMinutes: int(s.ttl / time.Minute),
		RequestedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.dispatch.PasswordResetRequested(dctx, ev)
	}()
}

// RedeemReset exchanges a raw reset secret for a new password.  The digest
// lookup, password swap and token clear happen in one conditional store
// operation, so a secret redeems at most once even under concurrent
// attempts.  Input validation (presence, minimum length) is the handler's
// job; by the time this runs the only failures left are "no matching live
// credential" and store trouble.  On success every refresh token the
// account holds is revoked, so sessions minted under the old password stop
// working.
func (s *Recovery) RedeemReset(ctx context.Context, rawSecret, newPassword string) error {
	digest := utils.HashResetRaw(rawSecret)

	newHash, err := utils.HashPassword(newPassword, s.cost)
	if err != nil {
		s.log.Error("reset redemption: password hashing failed", zap.Error(err))
		return err
	}

	userID, ok, err := s.accounts.ResetPasswordByDigest(ctx, digest, newHash)
	if err != nil {
		s.log.Error("reset redemption: store update failed", zap.Error(err))
		return err
	}
	if !ok {
		return ErrInvalidOrExpired
	}

	// The password is already changed at this point, so a revocation
	// failure is logged rather than turned into a redemption error.
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		s.log.Error("reset redemption: session revocation failed",
			zap.Uint64("user_id", userID), zap.Error(err))
	}
	return nil
}
