// Package session holds per-conversation scrape state and the in-memory
// store that owns it.
package session

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"breederchat/internal/core/record"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the mutable state of one conversation. Callers hold Lock for
// the whole of any read-modify-write sequence on the exported fields.
type Session struct {
	mu       sync.Mutex
	id       string
	// lastUsed is unix nanos. The store touches it without the session lock.
	lastUsed atomic.Int64

	Messages []Message
	// LastURL is the canonical base URL the page cache belongs to.
	LastURL string
	// CurrentPage never exceeds MaxPage.
	CurrentPage int
	Pages       map[int][]record.Record
	Results     []record.Record
}

func newSession(id string, now time.Time) *Session {
	s := &Session{id: id, Pages: make(map[int][]record.Record)}
	s.touch(now)
	return s
}

func (s *Session) touch(t time.Time) { s.lastUsed.Store(t.UnixNano()) }

// LastUsed reports when the store last handed the session out.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

func (s *Session) ID() string { return s.id }

func (s *Session) Lock()         { s.mu.Lock() }
func (s *Session) Unlock()       { s.mu.Unlock() }
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Reset points the session at url and drops all cached pages.
func (s *Session) Reset(url string) {
	s.LastURL = url
	s.CurrentPage = 0
	s.Pages = make(map[int][]record.Record)
	s.Results = nil
}

func (s *Session) MaxPage() int {
	max := 0
	for p := range s.Pages {
		if p > max {
			max = p
		}
	}
	return max
}

func (s *Session) CachedPages() []int {
	pages := make([]int, 0, len(s.Pages))
	for p := range s.Pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func (s *Session) AppendMessage(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// RecentMessages returns a copy of the last n messages.
func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	start := len(s.Messages) - n
	if start < 0 {
		start = 0
	}
	return append([]Message(nil), s.Messages[start:]...)
}

// Snapshot is a read-only summary for the sessions endpoint.
type Snapshot struct {
	ID           string    `json:"sessionId"`
	LastURL      string    `json:"lastUrl,omitempty"`
	CurrentPage  int       `json:"currentPage"`
	CachedPages  []int     `json:"cachedPages"`
	TotalItems   int       `json:"totalItems"`
	MessageCount int       `json:"messageCount"`
	LastUsed     time.Time `json:"lastUsed"`
}

// Snapshot must be called with the lock held.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:           s.id,
		LastURL:      s.LastURL,
		CurrentPage:  s.CurrentPage,
		CachedPages:  s.CachedPages(),
		TotalItems:   len(s.Results),
		MessageCount: len(s.Messages),
		LastUsed:     s.LastUsed(),
	}
}
