package loginsession

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
	nowTime  func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryOption func(*InMemoryRepo)

// WithNowTime sets the clock used for hard expiry (primarily for testing)
func WithNowTime(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.nowTime = now
	}
}

// NewInMemoryRepo creates a new in-memory login session repository
func NewInMemoryRepo(opts ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions: make(map[string]Session),
		nowTime:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Upsert(_ context.Context, session Session) error {
	if session.ID == "" {
		return errors.New("session id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	session.User.Permissions = append([]string(nil), session.User.Permissions...)
	r.sessions[session.ID] = session
	return nil
}

// Get returns a copy of the session. Sessions past their refresh expiry are gone.
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[sessionID]
	r.mu.RUnlock()

	if !exists {
		return Session{}, ErrNotFound
	}
	if !r.nowTime().Before(session.RefreshExpiresAt) {
		r.mu.Lock()
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		return Session{}, ErrNotFound
	}
	session.User.Permissions = append([]string(nil), session.User.Permissions...)
	return session, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// Len returns the number of stored sessions, including ones not yet purged.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
