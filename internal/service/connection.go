package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository"
)

// Outcome names the result of an OAuth callback.
type Outcome string

const (
	// LinkedLogin: the identity is linked and the visitor was anonymous, so
	// the owner is logged in.
	LinkedLogin Outcome = "linked-login"
	// AlreadyLinked: the identity is already linked to the current user.
	AlreadyLinked Outcome = "already-linked"
	// AlreadyLinkedConflict: the identity belongs to a different user than
	// the one logged in.
	AlreadyLinkedConflict Outcome = "already-linked-conflict"
	// LinkToCurrentUser: a new connection was added to the logged in user.
	LinkToCurrentUser Outcome = "link-to-current-user"
	// LinkToEmailMatch: the provider email matched an account, which was
	// linked and logged in.
	LinkToEmailMatch Outcome = "link-to-email-match"
	// NeedsOnboarding: nothing matched and a new account must be created.
	NeedsOnboarding Outcome = "needs-onboarding"
	// ProviderAuthFailed: the provider could not vouch for the visitor.
	ProviderAuthFailed Outcome = "provider-auth-failed"
)

// Decision is the resolved OAuth callback.
type Decision struct {
	Outcome Outcome
	// UserID is the account the identity belongs to, empty for NeedsOnboarding.
	// For LinkedLogin and LinkToEmailMatch it is the account to log in.
	UserID string
	// Onboarding is set for NeedsOnboarding.
	Onboarding *model.OnboardingState
}

// ConnectionService links external identities to accounts.
type ConnectionService struct {
	connections ConnectionStore
	users       UserStore
	sessions    *SessionService
}

// NewConnectionService creates a new ConnectionService.
func NewConnectionService(connections ConnectionStore, users UserStore, sessions *SessionService) *ConnectionService {
	return &ConnectionService{
		connections: connections,
		users:       users,
		sessions:    sessions,
	}
}

// Resolve decides what a verified provider profile means for the visitor.
// currentUserID is empty for anonymous requests.
func (s *ConnectionService) Resolve(ctx context.Context, providerName string, profile model.ProviderProfile, currentUserID string) (*Decision, error) {
	existing, err := s.connections.FindByProvider(ctx, providerName, profile.ID)
	switch {
	case err == nil:
		return s.resolveExisting(ctx, existing, currentUserID)
	case !errors.Is(err, repository.ErrConnectionNotFound):
		return nil, fmt.Errorf("looking up connection: %w", err)
	}

	if currentUserID != "" {
		if err := s.link(ctx, providerName, profile.ID, currentUserID); err != nil {
			if errors.Is(err, ErrConnectionConflict) {
				return &Decision{Outcome: AlreadyLinkedConflict}, nil
			}
			return nil, err
		}
		return &Decision{Outcome: LinkToCurrentUser, UserID: currentUserID}, nil
	}

	if email := normalizeEmail(profile.Email); email != "" {
		user, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.link(ctx, providerName, profile.ID, user.ID); err != nil {
				return nil, err
			}
			return &Decision{Outcome: LinkToEmailMatch, UserID: user.ID}, nil
		case !errors.Is(err, repository.ErrUserNotFound):
			return nil, fmt.Errorf("getting user: %w", err)
		}
	}

	return &Decision{
		Outcome: NeedsOnboarding,
		Onboarding: &model.OnboardingState{
			Email:        normalizeEmail(profile.Email),
			ProviderName: providerName,
			ProviderID:   profile.ID,
			Username:     suggestUsername(profile.Username),
			Name:         profile.Name,
			ImageURL:     profile.ImageURL,
		},
	}, nil
}

func (s *ConnectionService) resolveExisting(ctx context.Context, conn *model.Connection, currentUserID string) (*Decision, error) {
	switch {
	case currentUserID == "":
		return &Decision{Outcome: LinkedLogin, UserID: conn.UserID}, nil
	case currentUserID == conn.UserID:
		return &Decision{Outcome: AlreadyLinked, UserID: conn.UserID}, nil
	default:
		return &Decision{Outcome: AlreadyLinkedConflict, UserID: conn.UserID}, nil
	}
}

func (s *ConnectionService) link(ctx context.Context, providerName, providerID, userID string) error {
	err := s.connections.Create(ctx, &model.Connection{
		ProviderName: providerName,
		ProviderID:   providerID,
		UserID:       userID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateConnection) {
			return ErrConnectionConflict
		}
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

// SignupWithConnection creates an account from a provider identity that
// matched nothing and logs it in.
func (s *ConnectionService) SignupWithConnection(ctx context.Context, state model.OnboardingState, req model.SignupRequest) (*model.Session, error) {
	var v validator
	v.username("username", req.Username)
	v.name("name", req.Name)
	if !req.AgreeToTerms {
		v.add("agreeToTermsOfServiceAndPrivacyPolicy", "You must agree to the terms of service and privacy policy")
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if state.ProviderName == "" || state.ProviderID == "" || state.Email == "" {
		return nil, fmt.Errorf("incomplete onboarding state for provider %q", state.ProviderName)
	}

	user := &model.User{
		Username: req.Username,
		Email:    normalizeEmail(state.Email),
		Name:     optional(req.Name),
	}
	conn := &model.Connection{
		ProviderName: state.ProviderName,
		ProviderID:   state.ProviderID,
	}
	if err := s.users.CreateWithConnection(ctx, user, conn); err != nil {
		return nil, translateCreateError(err)
	}

	return s.sessions.Create(ctx, user.ID)
}

// List returns the connections of userID, oldest first.
func (s *ConnectionService) List(ctx context.Context, userID string) ([]*model.Connection, error) {
	conns, err := s.connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	return conns, nil
}

// CanDelete reports whether userID keeps a way to log in after removing one
// connection.
func (s *ConnectionService) CanDelete(ctx context.Context, userID string) (bool, error) {
	_, err := s.users.GetPasswordHash(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, repository.ErrPasswordNotFound):
		return false, fmt.Errorf("getting password: %w", err)
	}

	n, err := s.connections.CountByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("counting connections: %w", err)
	}
	return n > 1, nil
}

// Delete removes connection id owned by userID. Removing the last way to log
// in is ErrForbidden.
func (s *ConnectionService) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.CanDelete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	if err := s.connections.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// suggestUsername lowercases a provider login and strips characters a
// username cannot hold.
func suggestUsername(login string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(login) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}
