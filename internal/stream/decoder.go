package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
)

const readChunkSize = 4096

var eventDelimiter = []byte("\n\n")

// Decoder reads a chunked event stream incrementally. Bytes that do not yet
// form a complete event are buffered across reads.
type Decoder struct {
	r         io.Reader
	pending   []byte
	cancelled atomic.Bool
	terminal  bool
	truncated bool
}

// NewDecoder returns a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Cancel stops all further callbacks, including the synthesized completion.
// It is safe to call from any goroutine, and from inside a handler.
func (d *Decoder) Cancel() {
	d.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (d *Decoder) Cancelled() bool {
	return d.cancelled.Load()
}

// Decode is shorthand for NewDecoder(r).Run(ctx, h).
func Decode(ctx context.Context, r io.Reader, h Handler) error {
	return NewDecoder(r).Run(ctx, h)
}

// Run decodes until the reader is exhausted, the context ends, or Cancel is
// called. When the stream ends without a done or error event and was not
// cancelled, Run dispatches a truncated event followed by an empty done.
// Cancellation returns the context error, or context.Canceled after Cancel.
func (d *Decoder) Run(ctx context.Context, h Handler) error {
	buf := make([]byte, readChunkSize)
	for {
		if d.stopped(ctx) {
			return d.cancelErr(ctx)
		}
		n, err := d.r.Read(buf)
		if n > 0 {
			d.pending = append(d.pending, normalizeNewlines(buf[:n])...)
			d.drain(ctx, h, false)
		}
		if err == nil {
			continue
		}
		if d.stopped(ctx) {
			return d.cancelErr(ctx)
		}
		if errors.Is(err, io.EOF) {
			d.drain(ctx, h, true)
			d.finish(ctx, h)
			return nil
		}
		log.Printf("[stream] read failed: %v", err)
		if !d.terminal {
			d.dispatch(ctx, h, Event{Kind: KindError, Error: ErrorPayload{Code: CodeStreamError, Message: err.Error()}})
		}
		return fmt.Errorf("read stream: %w", err)
	}
}

func (d *Decoder) stopped(ctx context.Context) bool {
	return d.Cancelled() || ctx.Err() != nil
}

func (d *Decoder) cancelErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

// drain dispatches every complete event in the buffer. At EOF the remainder
// is treated as a final event even without a trailing blank line.
func (d *Decoder) drain(ctx context.Context, h Handler, eof bool) {
	for {
		idx := bytes.Index(d.pending, eventDelimiter)
		if idx < 0 {
			break
		}
		raw := d.pending[:idx]
		d.pending = d.pending[idx+len(eventDelimiter):]
		if ev, ok := parseEvent(raw); ok {
			d.dispatch(ctx, h, ev)
		}
	}
	if eof && len(bytes.TrimSpace(d.pending)) > 0 {
		raw := d.pending
		d.pending = nil
		if ev, ok := parseEvent(raw); ok {
			d.dispatch(ctx, h, ev)
		}
	}
}

func (d *Decoder) finish(ctx context.Context, h Handler) {
	if d.terminal || d.stopped(ctx) {
		return
	}
	log.Printf("[stream] closed without a terminal event; synthesizing completion")
	if !d.truncated {
		d.dispatch(ctx, h, Event{Kind: KindTruncated, Synthesized: true})
	}
	d.dispatch(ctx, h, Event{Kind: KindDone, Synthesized: true})
}

func (d *Decoder) dispatch(ctx context.Context, h Handler, ev Event) {
	if d.stopped(ctx) {
		return
	}
	switch {
	case ev.Terminal():
		d.terminal = true
	case ev.Kind == KindTruncated:
		d.truncated = true
	}
	h.HandleEvent(ev)
}

// parseEvent classifies the lines of one raw event. The second result is
// false for events that should be ignored.
func parseEvent(raw []byte) (Event, bool) {
	name := "message"
	var data []byte
	for _, line := range bytes.Split(raw, []byte("\n")) {
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data = append(data, bytes.TrimSpace(line[len("data:"):])...)
		}
	}

	kind := Kind(name)
	switch kind {
	case KindToken, KindCitation, KindError, KindTruncated, KindDone:
	default:
		return Event{}, false
	}
	if len(data) == 0 {
		if kind == KindTruncated || kind == KindDone {
			return Event{Kind: kind}, true
		}
		return Event{}, false
	}

	ev := Event{Kind: kind}
	var err error
	switch kind {
	case KindToken:
		var p tokenPayload
		err = json.Unmarshal(data, &p)
		ev.Text = p.Text
	case KindCitation:
		err = json.Unmarshal(data, &ev.Citation)
	case KindError:
		err = json.Unmarshal(data, &ev.Error)
		if ev.Error.Code == "" {
			ev.Error.Code = "unknown"
		}
		if ev.Error.Message == "" {
			ev.Error.Message = "Unknown error"
		}
	case KindTruncated:
		var p map[string]any
		err = json.Unmarshal(data, &p)
	case KindDone:
		err = json.Unmarshal(data, &ev.Done)
	}
	if err != nil {
		return Event{Kind: KindParseError, Error: ErrorPayload{
			Code:    CodeParseError,
			Message: fmt.Sprintf("%s event: %v", name, err),
		}}, true
	}
	return ev, true
}

// normalizeNewlines drops carriage returns so CRLF framing splits like LF.
func normalizeNewlines(b []byte) []byte {
	if bytes.IndexByte(b, '\r') < 0 {
		return b
	}
	return bytes.ReplaceAll(b, []byte("\r"), nil)
}
