package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/csheth/docscout/internal/api"
	"github.com/csheth/docscout/internal/stream"
)

var (
	// ErrStreaming is returned when an answer is already in flight.
	ErrStreaming = errors.New("a response is still streaming")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNothingToRegenerate means there is no user message to resend.
	ErrNothingToRegenerate = errors.New("no question to regenerate")
	// ErrNothingToContinue means the last answer cannot be resumed.
	ErrNothingToContinue = errors.New("last answer cannot be continued")
)

// Inline notice texts.
const (
	PaywallText     = "You have run out of credits. Upgrade your plan to keep asking questions."
	ProcessingText  = "The document is still being processed. Try again in a moment."
	RateLimitedText = "Too many requests. Wait a moment and try again."
)

// Streamer opens answer streams. *api.Client satisfies it.
type Streamer interface {
	Chat(ctx context.Context, req api.ChatRequest, h stream.Handler) error
	Continue(ctx context.Context, req api.ContinueRequest, h stream.Handler) error
}

// Options tune a Session.
type Options struct {
	Mode   string
	Locale string
	NewID  func() string
	Now    func() time.Time
}

// Session drives one conversation: it opens at most one stream at a time and
// applies its events to the Store in arrival order.
type Session struct {
	store    *Store
	streamer Streamer
	mode     string
	locale   string
	newID    func() string
	now      func() time.Time

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	errored bool
}

// NewSession binds a store to a streamer.
func NewSession(store *Store, streamer Streamer, opts Options) *Session {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		store:    store,
		streamer: streamer,
		mode:     opts.Mode,
		locale:   opts.Locale,
		newID:    opts.NewID,
		now:      opts.Now,
	}
}

// Store returns the transcript store.
func (s *Session) Store() *Store {
	return s.store
}

// SendMessage appends the question and an empty answer, then streams the
// answer into it. It blocks until the stream ends. While another answer is
// streaming it returns ErrStreaming without touching the transcript.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.store.IsStreaming() {
		s.mu.Unlock()
		return ErrStreaming
	}
	s.store.AddMessage(Message{ID: s.newID(), Role: RoleUser, Text: text, CreatedAt: s.now()})
	s.store.AddMessage(s.newAnswer())
	streamCtx, gen := s.beginLocked(ctx)
	req := api.ChatRequest{Message: text, Mode: s.mode, Locale: s.locale}
	s.mu.Unlock()

	err := s.streamer.Chat(streamCtx, req, s.handler(gen))
	return s.finish(gen, err)
}

// RegenerateLastResponse drops everything after the last question and asks it
// again.
func (s *Session) RegenerateLastResponse(ctx context.Context) error {
	s.mu.Lock()
	if s.store.IsStreaming() {
		s.mu.Unlock()
		return ErrStreaming
	}
	question, ok := s.store.TrimToLastUser()
	if !ok {
		s.mu.Unlock()
		return ErrNothingToRegenerate
	}
	s.store.AddMessage(s.newAnswer())
	streamCtx, gen := s.beginLocked(ctx)
	req := api.ChatRequest{Message: question.Text, Mode: s.mode, Locale: s.locale}
	s.mu.Unlock()

	err := s.streamer.Chat(streamCtx, req, s.handler(gen))
	return s.finish(gen, err)
}

// Continue resumes a truncated answer, appending to the same message.
func (s *Session) Continue(ctx context.Context) error {
	s.mu.Lock()
	if s.store.IsStreaming() {
		s.mu.Unlock()
		return ErrStreaming
	}
	last, ok := s.store.Last()
	if !ok || last.Role != RoleAssistant || !last.CanContinue {
		s.mu.Unlock()
		return ErrNothingToContinue
	}
	s.store.UpdateLast(func(m *Message) {
		m.Truncated = false
		m.CanContinue = false
	})
	streamCtx, gen := s.beginLocked(ctx)
	req := api.ContinueRequest{MessageID: last.ServerID, Mode: s.mode, Locale: s.locale}
	s.mu.Unlock()

	err := s.streamer.Continue(streamCtx, req, s.handler(gen))
	return s.finish(gen, err)
}

// StopStreaming cancels the in-flight answer. No event read after this call
// reaches the store.
func (s *Session) StopStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.gen++
	s.cancel()
	s.cancel = nil
	s.store.SetStreaming(false)
	log.Printf("[chat] stream stopped")
}

func (s *Session) newAnswer() Message {
	return Message{ID: s.newID(), Role: RoleAssistant, CreatedAt: s.now()}
}

func (s *Session) beginLocked(ctx context.Context) (context.Context, uint64) {
	streamCtx, cancel := context.WithCancel(ctx)
	s.gen++
	s.cancel = cancel
	s.errored = false
	s.store.SetStreaming(true)
	return streamCtx, s.gen
}

// handler applies events for the stream started as gen. Events from a stream
// that was stopped or superseded are dropped.
func (s *Session) handler(gen uint64) stream.Handler {
	apply := stream.Callbacks{
		OnToken:    s.store.UpdateLastMessage,
		OnCitation: s.store.AddCitationToLastMessage,
		OnTruncated: func() {
			s.store.UpdateLast(func(m *Message) {
				m.Truncated = true
				m.CanContinue = true
			})
		},
		OnDone: func(p stream.DonePayload) {
			s.store.UpdateLast(func(m *Message) {
				if p.MessageID != "" {
					m.ServerID = p.MessageID
				}
				m.CanContinue = m.CanContinue || p.CanContinue
				if p.ContinuationCount > 0 {
					m.ContinuationCount = p.ContinuationCount
				}
			})
		},
		OnError: func(p stream.ErrorPayload) {
			s.failLocked(NoticeError, p.Message)
		},
		OnParseError: func(p stream.ErrorPayload) {
			log.Printf("[chat] skipped malformed event: %s", p.Message)
		},
	}
	return stream.HandlerFunc(func(e stream.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		apply.HandleEvent(e)
	})
}

// finish clears the streaming flag and reports transport failures inline.
func (s *Session) finish(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	defer s.store.SetStreaming(false)

	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if !s.errored {
		notice, text := classify(err)
		s.failLocked(notice, text)
	}
	log.Printf("[chat] stream failed: %v", err)
	return err
}

// failLocked turns an empty answer into the notice, or appends the notice as
// its own message when the answer already has text.
func (s *Session) failLocked(notice Notice, text string) {
	s.errored = true
	last, ok := s.store.Last()
	if ok && last.Role == RoleAssistant && strings.TrimSpace(last.Text) == "" && len(last.Citations) == 0 {
		s.store.UpdateLast(func(m *Message) {
			m.Text = text
			m.IsError = true
			m.Notice = notice
		})
		return
	}
	msg := s.newAnswer()
	msg.Text = text
	msg.IsError = true
	msg.Notice = notice
	s.store.AddMessage(msg)
}

func classify(err error) (Notice, string) {
	switch {
	case errors.Is(err, api.ErrPaymentRequired):
		return NoticePaywall, PaywallText
	case errors.Is(err, api.ErrProcessing):
		return NoticeProcessing, ProcessingText
	case errors.Is(err, api.ErrRateLimited):
		return NoticeRateLimited, RateLimitedText
	default:
		return NoticeError, fmt.Sprintf("Something went wrong: %v", err)
	}
}
