package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// ResetToken is a single-use password-reset credential.  Raw is handed to
// the user out of band (mailed as a link) and is never persisted or logged;
// only Digest is stored, so a leaked database row cannot be redeemed.
type ResetToken struct {
	Raw    string    // 64-char hex secret returned to the notification channel
	Digest string    // SHA‑256 hex digest stored on the user row
	Exp    time.Time // UTC expiration time
}

// NewResetToken generates a reset credential from 32 bytes of secure
// randomness.  The digest is a plain SHA‑256 of the raw secret: the secret
// already carries full entropy and is short-lived, so a slow password hash
// would buy nothing and would break the equality lookup.
func NewResetToken(ttl time.Duration) (ResetToken, error) {
	raw, err := randomHex(32) // 32 bytes -> 64 hex chars
	if err != nil {
		return ResetToken{}, err
	}
	return ResetToken{
		Raw:    raw,
		Digest: HashResetRaw(raw),
		Exp:    time.Now().UTC().Add(ttl),
	}, nil
}

// HashResetRaw returns the SHA‑256 hex digest of a raw reset token.  The
// digest is deterministic so a presented secret can be recomputed into the
// stored lookup value.
func HashResetRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyResetDigest reports whether raw matches storedDigest and the
// credential has not expired.  The digest comparison is constant time so
// the check leaks nothing about how much of a guessed secret was correct.
// It never errors: malformed, empty or expired input is simply false.
func VerifyResetDigest(raw, storedDigest string, storedExp time.Time) bool {
	if raw == "" || storedDigest == "" {
		return false
	}
	if time.Now().UTC().After(storedExp.UTC()) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetRaw(raw)), []byte(storedDigest)) == 1
}
