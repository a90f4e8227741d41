package crypto

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for every stored password.
const PasswordCost = 10

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var (
	ErrInvalidHashFormat = errors.New("invalid encoded hash format")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes")
)

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// HashPassword hashes a password with bcrypt. The salt is random per call and
// embedded in the returned string.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword checks whether a password matches the given bcrypt hash.
// The comparison is bcrypt's own constant-time routine.
func VerifyPassword(password, encodedHash string) (bool, error) {
	if len(password) > MaxPasswordBytes {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrHashTooShort):
		return false, ErrInvalidHashFormat
	default:
		var invalidPrefix bcrypt.InvalidHashPrefixError
		var invalidVersion bcrypt.HashVersionTooNewError
		if errors.As(err, &invalidPrefix) || errors.As(err, &invalidVersion) {
			return false, ErrInvalidHashFormat
		}
		return false, err
	}
}

// VerifyAgainstDummy spends the same bcrypt work as VerifyPassword without a
// stored hash, so a missing user costs as much as a wrong password.
func VerifyAgainstDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), PasswordCost)
	})
	if len(password) > MaxPasswordBytes {
		password = password[:MaxPasswordBytes]
	}
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
