package authflowrepo

import (
	"context"
	"errors"
	"sync"
	"time"
)

type entry struct {
	state     AuthFlowState
	expiresAt time.Time
}

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]entry
	nowTime func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryOption func(*InMemoryRepo)

// WithNowTime sets the clock used for expiry (primarily for testing)
func WithNowTime(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.nowTime = now
	}
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(opts ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		states:  make(map[string]entry),
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert stores or replaces an auth flow state
func (r *InMemoryRepo) Upsert(_ context.Context, authState *AuthFlowState, ttl time.Duration) error {
	if authState == nil {
		return errors.New("authState cannot be nil")
	}
	if authState.State == "" {
		return errors.New("state cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowTime()
	r.purgeExpired(now)
	// Stored by value to prevent external modifications
	r.states[authState.State] = entry{state: *authState, expiresAt: now.Add(ttl)}
	return nil
}

// Consume deletes the state and returns it if it had not yet expired
func (r *InMemoryRepo) Consume(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.states[state]
	if !exists {
		return nil, ErrNotFound
	}
	delete(r.states, state)

	if !r.nowTime().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	authState := e.state
	return &authState, nil
}

// Len returns the number of stored states, expired or not
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *InMemoryRepo) purgeExpired(now time.Time) {
	for k, e := range r.states {
		if !now.Before(e.expiresAt) {
			delete(r.states, k)
		}
	}
}
