package utils

import "golang.org/x/crypto/bcrypt"

// MinBcryptCost is the floor for at-rest password hashing; configs asking
// for less are bumped up to it.
const MinBcryptCost = 12

// HashPassword returns a salted bcrypt hash of plain using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
