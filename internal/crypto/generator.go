package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	numberChars    = "0123456789"

	// AlphanumericAlphabet is URL safe without escaping.
	AlphanumericAlphabet = uppercaseChars + lowercaseChars + numberChars

	OAuthStateLength = 32
	CSRFTokenLength  = 32
)

var ErrEmptyAlphabet = errors.New("alphabet must not be empty")

// RandomString returns a cryptographically secure random string of length
// characters drawn uniformly from alphabet.
func RandomString(length int, alphabet string) (string, error) {
	if alphabet == "" {
		return "", ErrEmptyAlphabet
	}

	result := make([]byte, length)
	for i := range result {
		ch, err := randChar(alphabet)
		if err != nil {
			return "", err
		}
		result[i] = ch
	}

	return string(result), nil
}

// OAuthState returns a fresh state parameter binding an authorization request
// to its callback.
func OAuthState() (string, error) {
	return RandomString(OAuthStateLength, AlphanumericAlphabet)
}

// CSRFToken returns a fresh double-submit token.
func CSRFToken() (string, error) {
	return RandomString(CSRFTokenLength, AlphanumericAlphabet)
}

// randChar picks a random character from charset using crypto/rand.
func randChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}
