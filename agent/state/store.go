package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilSession      = errors.New("session is nil")
	ErrInvalidSession  = errors.New("session key is empty")
)

const (
	defaultStoreKeyPrefix = "ordering:session:"
	maxResponseSizeBytes  = 2 << 20
)

// Store is the persistence contract used by the orchestrator. Get returns a
// copy; callers mutate it and hand it back through Update.
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	// Create stores a fresh session, replacing any existing one under the key.
	Create(ctx context.Context, s *Session) error
	// Update overwrites an existing session. ErrSessionNotFound if absent.
	Update(ctx context.Context, s *Session) error
	Evict(ctx context.Context, key string) error
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. A zero TTL keeps them until
// evicted.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(entry) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && s.expired(cur) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	if err := checkWritable(sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sess.Key] = s.entry(sess)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	if err := checkWritable(sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[sess.Key]
	if !ok || s.expired(cur) {
		delete(s.items, sess.Key)
		return ErrSessionNotFound
	}
	s.items[sess.Key] = s.entry(sess)
	return nil
}

func (s *MemoryStore) Evict(_ context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len reports stored sessions, expired ones included until next touched.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) entry(sess *Session) memoryEntry {
	e := memoryEntry{session: sess.Clone()}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	return e
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func checkWritable(sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(sess.Key) == "" {
		return ErrInvalidSession
	}
	return nil
}

func sessionKey(prefix, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidSession
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + key, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
