package crypto

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cookieIssuer = "epic-notes"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrEmptySecret  = errors.New("cookie secret must not be empty")
)

// CookieSigner signs cookie payloads as HS256 JWTs. The purpose of a payload is
// stored as the subject, so a value sealed for one cookie never opens as another.
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner creates a signer for the given secret.
func NewCookieSigner(secret string) (*CookieSigner, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &CookieSigner{secret: []byte(secret)}, nil
}

type sealedClaims[T any] struct {
	jwt.RegisteredClaims
	Data T `json:"data"`
}

// Seal signs v for purpose. A zero ttl leaves the token without an expiry; the
// cookie's own lifetime then bounds it.
func Seal[T any](s *CookieSigner, purpose string, v T, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sealedClaims[T]{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   cookieIssuer,
			Subject:  purpose,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Data: v,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Open verifies a token produced by Seal for the same purpose and returns its payload.
func Open[T any](s *CookieSigner, purpose, tokenString string) (T, error) {
	var zero T

	claims := &sealedClaims[T]{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithSubject(purpose),
	)
	if err != nil || !token.Valid {
		return zero, ErrInvalidToken
	}

	return claims.Data, nil
}
