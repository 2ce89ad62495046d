package initiator

import (
	"sync"
	"time"
)

// DefaultNamespace prefixes every key the initiator stores.
const DefaultNamespace = "oauth_"

// Store is client-side storage with a per-key TTL.
type Store interface {
	Set(key string, value []byte, ttl time.Duration)
	Get(key string) ([]byte, bool)
	Delete(key string)
}

type storeEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a namespaced in-memory Store. Expired keys are dropped on access.
type MemoryStore struct {
	mu        sync.Mutex
	namespace string
	entries   map[string]storeEntry
	nowTime   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type MemoryStoreOption func(*MemoryStore)

// WithStoreClock sets the clock used for expiry (primarily for testing)
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nowTime = now
	}
}

func WithNamespace(namespace string) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.namespace = namespace
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		namespace: DefaultNamespace,
		entries:   make(map[string]storeEntry),
		nowTime:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.namespace+key] = storeEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.nowTime().Add(ttl),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.namespace + key
	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if !s.nowTime().Before(e.expiresAt) {
		delete(s.entries, k)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, s.namespace+key)
}

// Keys lists the stored keys, namespace included.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
