package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxIDLength bounds client-supplied session ids.
const MaxIDLength = 64

// Store keeps the most recently used sessions in memory.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Session]
	now   func() time.Time
}

// NewStore creates a Store holding at most capacity sessions. onEvict, if not
// nil, is called with the id of every session dropped to make room.
func NewStore(capacity int, onEvict func(id string)) (*Store, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	cache, err := lru.NewWithEvict[string, *Session](capacity, func(id string, _ *Session) {
		if onEvict != nil {
			onEvict(id)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache, now: time.Now}, nil
}

// GetOrCreate returns the session with the given id, creating it when absent.
// An empty or oversized id gets a freshly generated one. created reports
// whether a new session was made.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id == "" || len(id) > MaxIDLength {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache.Get(id); ok {
		return sess, false
	}
	sess = newSession(id, s.now())
	s.cache.Add(id, sess)
	return sess, true
}

// Get returns an existing session.
func (s *Store) Get(id string) (*Session, bool) {
	return s.cache.Get(id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int { return s.cache.Len() }
