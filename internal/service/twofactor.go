package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository"
)

// EnrollmentWindow is how long a started 2FA enrollment waits for its first code.
const EnrollmentWindow = 10 * time.Minute

// Enrollment is a pending 2FA setup shown to the user.
type Enrollment struct {
	KeyURI string
	Secret string
}

// TwoFactorService manages the persistent TOTP secret of a user.
type TwoFactorService struct {
	store  VerificationStore
	users  UserStore
	issuer string
	now    Clock
}

// NewTwoFactorService creates a new TwoFactorService.
func NewTwoFactorService(store VerificationStore, users UserStore, issuer string) *TwoFactorService {
	return &TwoFactorService{
		store:  store,
		users:  users,
		issuer: issuer,
		now:    systemClock,
	}
}

// BeginEnrollment stores a pending secret for userID and returns the key URI
// for an authenticator app. Starting again replaces the pending secret.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context, userID string) (*Enrollment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	otp, uri, err := crypto.NewTOTP(s.issuer, user.Email, crypto.TOTPPeriod)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expires := now.Add(EnrollmentWindow)
	v := &model.Verification{
		Type:      model.VerificationTwoFAVerify,
		Target:    userID,
		Secret:    otp.Secret,
		Algorithm: otp.Algorithm,
		Digits:    otp.Digits,
		Period:    otp.Period,
		CharSet:   otp.CharSet,
		ExpiresAt: &expires,
		CreatedAt: now,
	}
	if err := s.store.Upsert(ctx, v); err != nil {
		return nil, fmt.Errorf("saving pending 2fa: %w", err)
	}

	return &Enrollment{KeyURI: uri, Secret: otp.Secret}, nil
}

// ConfirmEnrollment checks the first code from the authenticator and turns
// the pending secret into the user's permanent one.
func (s *TwoFactorService) ConfirmEnrollment(ctx context.Context, userID, code string) error {
	now := s.now()
	pending, err := s.store.FindActive(ctx, userID, model.VerificationTwoFAVerify, now)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("looking up pending 2fa: %w", err)
	}
	if !totpOf(pending).Validate(code, now) {
		return ErrInvalidOrExpiredCode
	}

	enabled := *pending
	enabled.ID = ""
	enabled.Type = model.VerificationTwoFA
	enabled.ExpiresAt = nil
	enabled.CreatedAt = now
	if err := s.store.Upsert(ctx, &enabled); err != nil {
		return fmt.Errorf("saving 2fa: %w", err)
	}
	if err := s.store.Delete(ctx, userID, model.VerificationTwoFAVerify); err != nil {
		return fmt.Errorf("deleting pending 2fa: %w", err)
	}
	return nil
}

// IsEnabled reports whether userID has a confirmed 2FA secret.
func (s *TwoFactorService) IsEnabled(ctx context.Context, userID string) (bool, error) {
	_, err := s.store.FindActive(ctx, userID, model.VerificationTwoFA, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up 2fa: %w", err)
	}
	return true, nil
}

// Disable removes the user's 2FA secret.
func (s *TwoFactorService) Disable(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, userID, model.VerificationTwoFA); err != nil {
		return fmt.Errorf("deleting 2fa: %w", err)
	}
	return nil
}
