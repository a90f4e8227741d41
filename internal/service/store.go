package service

import (
	"context"
	"time"

	"github.com/roblesdotdev/epic-notes/internal/mail"
	"github.com/roblesdotdev/epic-notes/internal/model"
)

// UserStore is implemented by repository.UserRepository and memory.UserRepository.
type UserStore interface {
	CreateWithPassword(ctx context.Context, user *model.User, hash string) error
	CreateWithConnection(ctx context.Context, user *model.User, conn *model.Connection) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, value string) (*model.User, error)
	GetPasswordHash(ctx context.Context, userID string) (string, error)
	SetPassword(ctx context.Context, userID, hash string) error
	UpdateEmail(ctx context.Context, userID, email string) error
	Delete(ctx context.Context, userID string) error
}

// SessionStore is implemented by repository.SessionRepository and memory.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	FindUserID(ctx context.Context, sessionID string, now time.Time) (string, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteOthers(ctx context.Context, userID, keepID string) (int64, error)
	CountActive(ctx context.Context, userID string, now time.Time) (int, error)
}

// VerificationStore is implemented by repository.VerificationRepository and memory.VerificationRepository.
type VerificationStore interface {
	Upsert(ctx context.Context, v *model.Verification) error
	FindActive(ctx context.Context, target string, typ model.VerificationType, now time.Time) (*model.Verification, error)
	Delete(ctx context.Context, target string, typ model.VerificationType) error
}

// ConnectionStore is implemented by repository.ConnectionRepository and memory.ConnectionRepository.
type ConnectionStore interface {
	Create(ctx context.Context, c *model.Connection) error
	FindByProvider(ctx context.Context, providerName, providerID string) (*model.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Connection, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id, userID string) error
}

// Mailer delivers verification and notice emails.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}
