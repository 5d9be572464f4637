// Package conversation owns the chat transcript and the lifecycle of the
// answer stream that feeds it.
package conversation

import (
	"sync"
	"time"

	"github.com/csheth/docscout/internal/citation"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Notice classifies an inline status message shown in place of an answer.
type Notice string

const (
	NoticeNone        Notice = ""
	NoticePaywall     Notice = "paywall"
	NoticeProcessing  Notice = "processing"
	NoticeRateLimited Notice = "rate_limited"
	NoticeError       Notice = "error"
)

// Message is one entry of the transcript. User messages never carry
// citations.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Citations []citation.Citation
	IsError   bool
	Notice    Notice
	CreatedAt time.Time

	// ServerID is the backend message id reported by the done event.
	ServerID          string
	Truncated         bool
	CanContinue       bool
	ContinuationCount int
}

func (m Message) clone() Message {
	if m.Citations != nil {
		m.Citations = append([]citation.Citation(nil), m.Citations...)
	}
	return m
}

// Store holds the ordered messages and the streaming flag. All mutation goes
// through its methods, which apply in call order.
type Store struct {
	mu        sync.Mutex
	messages  []Message
	streaming bool
	observers map[int]func()
	nextObs   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{observers: map[int]func(){}}
}

// Subscribe registers fn to run after every change. Observers run on the
// mutating goroutine and must not call back into the Session. The returned
// func removes the observer.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// mutate applies fn under the lock and notifies observers when it reports a
// change.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	var observers []func()
	if changed {
		for _, obs := range s.observers {
			observers = append(observers, obs)
		}
	}
	s.mu.Unlock()
	for _, obs := range observers {
		obs()
	}
}

// AddMessage appends m.
func (s *Store) AddMessage(m Message) {
	s.mutate(func() bool {
		s.messages = append(s.messages, m.clone())
		return true
	})
}

// UpdateLastMessage appends delta to the last message's text. It does nothing
// when the store is empty.
func (s *Store) UpdateLastMessage(delta string) {
	s.mutate(func() bool {
		if len(s.messages) == 0 {
			return false
		}
		s.messages[len(s.messages)-1].Text += delta
		return true
	})
}

// AddCitationToLastMessage appends c to the last message's citations.
func (s *Store) AddCitationToLastMessage(c citation.Citation) {
	s.mutate(func() bool {
		if len(s.messages) == 0 {
			return false
		}
		last := &s.messages[len(s.messages)-1]
		last.Citations = append(last.Citations, c)
		return true
	})
}

// UpdateLast runs fn on the last message. It does nothing when the store is
// empty.
func (s *Store) UpdateLast(fn func(*Message)) {
	s.mutate(func() bool {
		if len(s.messages) == 0 {
			return false
		}
		fn(&s.messages[len(s.messages)-1])
		return true
	})
}

// SetStreaming sets the streaming flag.
func (s *Store) SetStreaming(v bool) {
	s.mutate(func() bool {
		if s.streaming == v {
			return false
		}
		s.streaming = v
		return true
	})
}

// IsStreaming reports whether an answer is in flight.
func (s *Store) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Last returns the last message.
func (s *Store) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1].clone(), true
}

// TrimToLastUser drops every message after the last user message and returns
// that message.
func (s *Store) TrimToLastUser() (Message, bool) {
	var found Message
	ok := false
	s.mutate(func() bool {
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].Role != RoleUser {
				continue
			}
			found = s.messages[i].clone()
			ok = true
			changed := i+1 < len(s.messages)
			s.messages = s.messages[:i+1]
			return changed
		}
		return false
	})
	return found, ok
}

// Reset clears messages and the streaming flag.
func (s *Store) Reset() {
	s.mutate(func() bool {
		s.messages = nil
		s.streaming = false
		return true
	})
}
