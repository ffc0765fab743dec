package session

import (
	"context"
	"sync"
	"time"

	"breederchat/internal/core/record"
	"breederchat/internal/logger"

	"github.com/google/uuid"
)

// Store is the in-memory session registry. Sessions idle longer than the
// TTL are evicted by Sweep.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger

	// OnSize is called with the live session count after it changes.
	OnSize func(n int)
}

func NewStore(idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      idleTTL,
		now:      time.Now,
		log:      logger.New("SessionStore"),
	}
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// GetOrCreate resolves id, creating the session when id is empty or unknown.
// An empty id gets a fresh uuid.
func (st *Store) GetOrCreate(id string) (*Session, string) {
	st.mu.Lock()
	now := st.now()
	if id != "" {
		if s, ok := st.sessions[id]; ok {
			s.touch(now)
			st.mu.Unlock()
			return s, id
		}
	} else {
		id = uuid.NewString()
	}
	s := newSession(id, now)
	st.sessions[id] = s
	n := len(st.sessions)
	st.mu.Unlock()

	st.reportSize(n)
	return s, id
}

func (st *Store) Put(id string, s *Session) {
	st.mu.Lock()
	s.id = id
	s.touch(st.now())
	if s.Pages == nil {
		s.Pages = make(map[int][]record.Record)
	}
	st.sessions[id] = s
	n := len(st.sessions)
	st.mu.Unlock()
	st.reportSize(n)
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle past the TTL. Sessions whose lock is held are
// in use and are kept.
func (st *Store) Sweep(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}
	st.mu.Lock()
	evicted := 0
	for id, s := range st.sessions {
		if now.Sub(s.LastUsed()) < st.ttl {
			continue
		}
		if !s.TryLock() {
			continue
		}
		delete(st.sessions, id)
		s.Unlock()
		evicted++
	}
	n := len(st.sessions)
	st.mu.Unlock()

	if evicted > 0 {
		st.log.LogDebugf("evicted %d idle sessions, %d live", evicted, n)
		st.reportSize(n)
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			st.Sweep(now)
		}
	}
}

func (st *Store) reportSize(n int) {
	if st.OnSize != nil {
		st.OnSize(n)
	}
}
