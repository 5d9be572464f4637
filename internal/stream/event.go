// Package stream decodes the chunked server-sent event body returned by the
// chat endpoints into typed events.
package stream

import "github.com/csheth/docscout/internal/citation"

// Kind names a decoded event.
type Kind string

const (
	KindToken      Kind = "token"
	KindCitation   Kind = "citation"
	KindError      Kind = "error"
	KindTruncated  Kind = "truncated"
	KindDone       Kind = "done"
	KindParseError Kind = "parse_error"
)

// Error codes produced by the decoder itself rather than the server.
const (
	CodeParseError  = "parse_error"
	CodeStreamError = "stream_error"
)

// ErrorPayload is the body of error and parse_error events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DonePayload is the body of a done event. A synthesized done is empty.
type DonePayload struct {
	MessageID         string `json:"message_id"`
	CanContinue       bool   `json:"can_continue,omitempty"`
	ContinuationCount int    `json:"continuation_count,omitempty"`
}

type tokenPayload struct {
	Text string `json:"text"`
}

// Event is one decoded stream event. Only the field matching Kind is set.
type Event struct {
	Kind     Kind
	Text     string
	Citation citation.Citation
	Error    ErrorPayload
	Done     DonePayload
	// Synthesized marks the truncated and done pair emitted when the
	// transport closed without a terminal event.
	Synthesized bool
}

// Terminal reports whether no further events are expected after e.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Handler receives decoded events in stream order.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Callbacks dispatches events to per-kind functions. Nil fields are skipped.
type Callbacks struct {
	OnToken      func(text string)
	OnCitation   func(c citation.Citation)
	OnError      func(p ErrorPayload)
	OnTruncated  func()
	OnDone       func(p DonePayload)
	OnParseError func(p ErrorPayload)
}

func (c Callbacks) HandleEvent(e Event) {
	switch e.Kind {
	case KindToken:
		if c.OnToken != nil {
			c.OnToken(e.Text)
		}
	case KindCitation:
		if c.OnCitation != nil {
			c.OnCitation(e.Citation)
		}
	case KindError:
		if c.OnError != nil {
			c.OnError(e.Error)
		}
	case KindTruncated:
		if c.OnTruncated != nil {
			c.OnTruncated()
		}
	case KindDone:
		if c.OnDone != nil {
			c.OnDone(e.Done)
		}
	case KindParseError:
		if c.OnParseError != nil {
			c.OnParseError(e.Error)
		}
	}
}
