package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/mail"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository"
)

// LoginResult is a successful password check. When TwoFactorRequired is set
// no session exists yet; one is created once the 2FA code is verified.
type LoginResult struct {
	UserID            string
	Session           *model.Session
	TwoFactorRequired bool
}

// AuthService handles account lifecycle: login, signup, password and email changes.
type AuthService struct {
	users         UserStore
	sessions      *SessionService
	verifications *VerificationService
	twoFactor     *TwoFactorService
	mailer        Mailer
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, sessions *SessionService, verifications *VerificationService, twoFactor *TwoFactorService, mailer Mailer) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		twoFactor:     twoFactor,
		mailer:        mailer,
	}
}

// Login checks username and password and starts a session unless the account
// still has to pass 2FA.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*LoginResult, error) {
	var v validator
	v.username("username", req.Username)
	v.password("password", req.Password)
	if err := v.err(); err != nil {
		return nil, err
	}

	user, err := s.verifyUserPassword(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	enabled, err := s.twoFactor.IsEnabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		return &LoginResult{UserID: user.ID, TwoFactorRequired: true}, nil
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{UserID: user.ID, Session: sess}, nil
}

// verifyUserPassword runs one bcrypt comparison whether or not the user
// exists, so a missing user and a wrong password look the same.
func (s *AuthService) verifyUserPassword(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			crypto.VerifyAgainstDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	hash, err := s.users.GetPasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPasswordNotFound) {
			crypto.VerifyAgainstDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("getting password: %w", err)
	}

	ok, err := crypto.VerifyPassword(password, hash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RequestSignup emails an onboarding code to email.
func (s *AuthService) RequestSignup(ctx context.Context, email, redirectTo string) (*Prepared, error) {
	email = normalizeEmail(email)

	var v validator
	v.email("email", email)
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	prepared, err := s.verifications.Prepare(ctx, PrepareParams{
		Type:       model.VerificationOnboarding,
		Target:     email,
		RedirectTo: redirectTo,
	})
	if err != nil {
		return nil, err
	}

	msg := mail.VerificationEmail(email, "Welcome to Epic Notes!", "Welcome to Epic Notes!", prepared.OTP, prepared.VerifyURL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending onboarding email: %w", err)
	}
	return prepared, nil
}

// Signup creates the account for a verified onboarding email and logs it in.
// req.Email must come from the verified onboarding state, never from the form.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*model.Session, error) {
	var v validator
	v.username("username", req.Username)
	v.name("name", req.Name)
	v.password("password", req.Password)
	if req.Password != req.ConfirmPassword {
		v.add("confirmPassword", "The passwords must match")
	}
	if !req.AgreeToTerms {
		v.add("agreeToTermsOfServiceAndPrivacyPolicy", "You must agree to the terms of service and privacy policy")
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := s.ensureUsernameFree(ctx, req.Username); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Email:    normalizeEmail(req.Email),
		Name:     optional(req.Name),
	}
	if err := s.users.CreateWithPassword(ctx, user, hash); err != nil {
		return nil, translateCreateError(err)
	}

	return s.sessions.Create(ctx, user.ID)
}

// RequestPasswordReset emails a reset code to the user matching
// usernameOrEmail. The verification target is the username.
func (s *AuthService) RequestPasswordReset(ctx context.Context, usernameOrEmail string) (*Prepared, error) {
	usernameOrEmail = strings.TrimSpace(usernameOrEmail)
	if usernameOrEmail == "" {
		return nil, fieldError("usernameOrEmail", "Username or email is required")
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fieldError("usernameOrEmail", "No user exists with this username or email")
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	prepared, err := s.verifications.Prepare(ctx, PrepareParams{
		Type:   model.VerificationResetPassword,
		Target: user.Username,
	})
	if err != nil {
		return nil, err
	}

	msg := mail.VerificationEmail(user.Email, "Epic Notes Password Reset", "Epic Notes Password Reset", prepared.OTP, prepared.VerifyURL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending reset email: %w", err)
	}
	return prepared, nil
}

// ResetPassword sets a new password for a username whose reset code was verified.
func (s *AuthService) ResetPassword(ctx context.Context, username, password, confirm string) error {
	var v validator
	v.password("password", password)
	if password != confirm {
		v.add("confirmPassword", "The passwords must match")
	}
	if err := v.err(); err != nil {
		return err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("getting user: %w", err)
	}
	return s.setPassword(ctx, user.ID, password)
}

// ChangePassword replaces the password of userID. A user without a password
// (OAuth only) may create one without supplying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, password, confirm string) error {
	var v validator
	v.password("newPassword", password)
	if password != confirm {
		v.add("confirmNewPassword", "The passwords must match")
	}
	if err := v.err(); err != nil {
		return err
	}

	hash, err := s.users.GetPasswordHash(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrPasswordNotFound):
	case err != nil:
		return fmt.Errorf("getting password: %w", err)
	default:
		ok, err := crypto.VerifyPassword(current, hash)
		if err != nil {
			return fmt.Errorf("verifying password: %w", err)
		}
		if !ok {
			return fieldError("currentPassword", "Incorrect password.")
		}
	}
	return s.setPassword(ctx, userID, password)
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("saving password: %w", err)
	}
	return nil
}

// HasPassword reports whether userID can log in with a password.
func (s *AuthService) HasPassword(ctx context.Context, userID string) (bool, error) {
	_, err := s.users.GetPasswordHash(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPasswordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("getting password: %w", err)
	}
	return true, nil
}

// RequestEmailChange sends a change-email code to the new address. The
// verification target is the user id.
func (s *AuthService) RequestEmailChange(ctx context.Context, userID, newEmail string) (*Prepared, error) {
	newEmail = normalizeEmail(newEmail)

	var v validator
	v.email("email", newEmail)
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, newEmail); err != nil {
		return nil, err
	}

	prepared, err := s.verifications.Prepare(ctx, PrepareParams{
		Type:   model.VerificationChangeEmail,
		Target: userID,
	})
	if err != nil {
		return nil, err
	}

	msg := mail.VerificationEmail(newEmail, "Epic Notes Email Change Verification", "Epic Notes Email Change", prepared.OTP, prepared.VerifyURL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending email change code: %w", err)
	}
	return prepared, nil
}

// ConfirmEmailChange stores the verified new address and notifies the old one.
func (s *AuthService) ConfirmEmailChange(ctx context.Context, userID, newEmail string) (*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldEmail := user.Email

	if err := s.users.UpdateEmail(ctx, userID, newEmail); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, fieldError("email", "A user already exists with this email")
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating email: %w", err)
	}

	if err := s.mailer.Send(ctx, mail.EmailChangedNotice(oldEmail, user.Username)); err != nil {
		return nil, fmt.Errorf("sending email change notice: %w", err)
	}
	user.Email = normalizeEmail(newEmail)
	return user, nil
}

// DeleteAccount removes the user and everything it owns.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// GetUser returns the user with userID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fieldError("email", "A user already exists with this email")
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("getting user: %w", err)
	}
}

func (s *AuthService) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return fieldError("username", "A user already exists with this username")
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("getting user: %w", err)
	}
}

func translateCreateError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return fieldError("username", "A user already exists with this username")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return fieldError("email", "A user already exists with this email")
	case errors.Is(err, repository.ErrDuplicateConnection):
		return ErrConnectionConflict
	}
	return fmt.Errorf("creating user: %w", err)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
