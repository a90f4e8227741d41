package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/mail"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository/memory"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email sent")
	return m.sent[len(m.sent)-1]
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store         *memory.Store
	clock         *testClock
	mailer        *fakeMailer
	sessions      *SessionService
	verifications *VerificationService
	twoFactor     *TwoFactorService
	auth          *AuthService
	connections   *ConnectionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	mailer := &fakeMailer{}

	sessions := NewSessionService(store.Sessions(), 0)
	sessions.now = clock.Now
	verifications := NewVerificationService(store.Verifications(), "https://notes.example.com/", "Epic Notes")
	verifications.now = clock.Now
	twoFactor := NewTwoFactorService(store.Verifications(), store.Users(), "Epic Notes")
	twoFactor.now = clock.Now

	return &testEnv{
		store:         store,
		clock:         clock,
		mailer:        mailer,
		sessions:      sessions,
		verifications: verifications,
		twoFactor:     twoFactor,
		auth:          NewAuthService(store.Users(), sessions, verifications, twoFactor, mailer),
		connections:   NewConnectionService(store.Connections(), store.Users(), sessions),
	}
}

func (e *testEnv) createUser(t *testing.T, username, email, password string) *model.User {
	t.Helper()

	user := &model.User{Username: username, Email: email}
	if password == "" {
		require.NoError(t, e.store.Users().CreateWithConnection(context.Background(), user,
			&model.Connection{ProviderName: "github", ProviderID: "seed-" + username}))
		return user
	}

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, e.store.Users().CreateWithPassword(context.Background(), user, hash))
	return user
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, field)
}
