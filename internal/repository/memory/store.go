// Package memory provides map-backed repositories with the same semantics as
// the MySQL ones. It backs development runs without a database and the
// service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository"
)

type verificationKey struct {
	target string
	typ    model.VerificationType
}

// Store holds every table behind one mutex.
type Store struct {
	mu            sync.Mutex
	users         map[string]model.User
	passwords     map[string]string
	sessions      map[string]model.Session
	verifications map[verificationKey]model.Verification
	connections   map[string]model.Connection
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[string]model.User),
		passwords:     make(map[string]string),
		sessions:      make(map[string]model.Session),
		verifications: make(map[verificationKey]model.Verification),
		connections:   make(map[string]model.Connection),
	}
}

func (s *Store) Users() *UserRepository                 { return &UserRepository{s: s} }
func (s *Store) Sessions() *SessionRepository           { return &SessionRepository{s: s} }
func (s *Store) Verifications() *VerificationRepository { return &VerificationRepository{s: s} }
func (s *Store) Connections() *ConnectionRepository     { return &ConnectionRepository{s: s} }

// UserRepository is the in-memory users and passwords table.
type UserRepository struct{ s *Store }

func (r *UserRepository) insertLocked(user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) CreateWithPassword(_ context.Context, user *model.User, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.insertLocked(user); err != nil {
		return err
	}
	r.s.passwords[user.ID] = hash
	return nil
}

func (r *UserRepository) CreateWithConnection(_ context.Context, user *model.User, conn *model.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.connections {
		if c.ProviderName == conn.ProviderName && c.ProviderID == conn.ProviderID {
			return repository.ErrDuplicateConnection
		}
	}
	if err := r.insertLocked(user); err != nil {
		return err
	}
	conn.UserID = user.ID
	insertConnectionLocked(r.s, conn)
	return nil
}

func (r *UserRepository) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*model.User, error) {
	username = strings.ToLower(username)
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(email)
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByUsernameOrEmail(_ context.Context, value string) (*model.User, error) {
	value = strings.ToLower(value)
	return r.find(func(u model.User) bool { return u.Email == value || u.Username == value })
}

func (r *UserRepository) GetPasswordHash(_ context.Context, userID string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	hash, ok := r.s.passwords[userID]
	if !ok {
		return "", repository.ErrPasswordNotFound
	}
	return hash, nil
}

func (r *UserRepository) SetPassword(_ context.Context, userID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.passwords[userID] = hash
	return nil
}

func (r *UserRepository) UpdateEmail(_ context.Context, userID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(email)
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	for id, other := range r.s.users {
		if id != userID && other.Email == email {
			return repository.ErrDuplicateEmail
		}
	}
	u.Email = email
	u.UpdatedAt = time.Now().UTC()
	r.s.users[userID] = u
	return nil
}

func (r *UserRepository) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.s.users, userID)
	delete(r.s.passwords, userID)
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	for id, c := range r.s.connections {
		if c.UserID == userID {
			delete(r.s.connections, id)
		}
	}
	for k := range r.s.verifications {
		if k.target == userID {
			delete(r.s.verifications, k)
		}
	}
	return nil
}

// SessionRepository is the in-memory sessions table.
type SessionRepository struct{ s *Store }

func (r *SessionRepository) Create(_ context.Context, sess *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[sess.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r *SessionRepository) FindUserID(_ context.Context, sessionID string, now time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[sessionID]
	if !ok || sess.Expired(now) {
		return "", repository.ErrSessionNotFound
	}
	if _, ok := r.s.users[sess.UserID]; !ok {
		return "", repository.ErrSessionNotFound
	}
	return sess.UserID, nil
}

func (r *SessionRepository) Delete(_ context.Context, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.sessions, sessionID)
	return nil
}

func (r *SessionRepository) DeleteOthers(_ context.Context, userID, keepID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sess := range r.s.sessions {
		if sess.UserID == userID && id != keepID {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) CountActive(_ context.Context, userID string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && !sess.Expired(now) {
			n++
		}
	}
	return n, nil
}

// Get returns a session by id regardless of expiry.
func (r *SessionRepository) Get(sessionID string) (model.Session, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[sessionID]
	return sess, ok
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.sessions)
}

// VerificationRepository is the in-memory verifications table.
type VerificationRepository struct{ s *Store }

func (r *VerificationRepository) Upsert(_ context.Context, v *model.Verification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := verificationKey{target: v.Target, typ: v.Type}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	r.s.verifications[key] = *v
	return nil
}

func (r *VerificationRepository) FindActive(_ context.Context, target string, typ model.VerificationType, now time.Time) (*model.Verification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.verifications[verificationKey{target: target, typ: typ}]
	if !ok || v.Expired(now) {
		return nil, repository.ErrVerificationNotFound
	}
	return &v, nil
}

func (r *VerificationRepository) Delete(_ context.Context, target string, typ model.VerificationType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.verifications, verificationKey{target: target, typ: typ})
	return nil
}

// Len returns the number of stored verifications.
func (r *VerificationRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.verifications)
}

// ConnectionRepository is the in-memory connections table.
type ConnectionRepository struct{ s *Store }

func insertConnectionLocked(s *Store, c *model.Connection) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.connections[c.ID] = *c
}

func (r *ConnectionRepository) Create(_ context.Context, c *model.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[c.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	for _, existing := range r.s.connections {
		if existing.ProviderName == c.ProviderName && existing.ProviderID == c.ProviderID {
			return repository.ErrDuplicateConnection
		}
	}
	insertConnectionLocked(r.s, c)
	return nil
}

func (r *ConnectionRepository) FindByProvider(_ context.Context, providerName, providerID string) (*model.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.connections {
		if c.ProviderName == providerName && c.ProviderID == providerID {
			found := c
			return &found, nil
		}
	}
	return nil, repository.ErrConnectionNotFound
}

func (r *ConnectionRepository) ListByUser(_ context.Context, userID string) ([]*model.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var conns []*model.Connection
	for _, c := range r.s.connections {
		if c.UserID == userID {
			found := c
			conns = append(conns, &found)
		}
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].CreatedAt.Before(conns[j].CreatedAt) })
	return conns, nil
}

func (r *ConnectionRepository) CountByUser(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, c := range r.s.connections {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *ConnectionRepository) Delete(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.connections[id]
	if !ok || c.UserID != userID {
		return repository.ErrConnectionNotFound
	}
	delete(r.s.connections, id)
	return nil
}
