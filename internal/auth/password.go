package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrKeyMismatch is returned when an operator key does not match its hash.
var ErrKeyMismatch = errors.New("auth: key mismatch")

// HashKey hashes an operator key with the given bcrypt cost. The result is
// what AUTH_ADMIN_KEY_HASH expects.
func HashKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareKey verifies a key against its hashed value.
func CompareKey(hashed, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrKeyMismatch
		}
		return err
	}
	return nil
}
