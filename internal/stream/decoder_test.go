package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(e Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []Kind {
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

const fullStream = "event: token\ndata: {\"text\":\"Net income \"}\n\n" +
	"event: token\ndata: {\"text\":\"rose [1].\"}\n\n" +
	"event: citation\ndata: {\"ref_index\":1,\"chunk_id\":\"c1\",\"page\":3,\"bboxes\":[{\"x\":0.1,\"y\":0.2,\"w\":0.5,\"h\":0.02}],\"text_snippet\":\"net income rose\",\"offset\":15}\n\n" +
	"event: done\ndata: {\"message_id\":\"m-1\",\"can_continue\":false}\n\n"

func TestDecodeFullStream(t *testing.T) {
	rec := &recorder{}
	err := Decode(context.Background(), iotest.OneByteReader(strings.NewReader(fullStream)), rec)
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindToken, KindToken, KindCitation, KindDone}, rec.kinds())
	assert.Equal(t, "Net income ", rec.events[0].Text)
	assert.Equal(t, "rose [1].", rec.events[1].Text)
	c := rec.events[2].Citation
	assert.Equal(t, 1, c.RefIndex)
	assert.Equal(t, 3, c.Page)
	assert.Equal(t, 15, c.Offset)
	require.Len(t, c.BoundingBoxes, 1)
	assert.Equal(t, "m-1", rec.events[3].Done.MessageID)
	assert.False(t, rec.events[3].Synthesized)
}

func TestDecodeConcatenatesDataLines(t *testing.T) {
	body := "event: token\r\ndata: {\"text\":\r\ndata: \"split\"}\r\n\r\nevent: done\r\ndata: {}\r\n\r\n"
	rec := &recorder{}
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))
	require.Equal(t, []Kind{KindToken, KindDone}, rec.kinds())
	assert.Equal(t, "split", rec.events[0].Text)
}

func TestDecodeIgnoresUnknownEvents(t *testing.T) {
	body := "event: ping\ndata: {}\n\n: comment\n\nevent: token\ndata: {\"text\":\"a\"}\n\nevent: done\ndata: {\"message_id\":\"x\"}\n\n"
	rec := &recorder{}
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))
	assert.Equal(t, []Kind{KindToken, KindDone}, rec.kinds())
}

func TestDecodeMalformedJSONIsNonFatal(t *testing.T) {
	body := "event: token\ndata: {not json\n\nevent: token\ndata: {\"text\":\"ok\"}\n\nevent: done\ndata: {}\n\n"
	rec := &recorder{}
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))
	require.Equal(t, []Kind{KindParseError, KindToken, KindDone}, rec.kinds())
	assert.Equal(t, CodeParseError, rec.events[0].Error.Code)
	assert.Equal(t, "ok", rec.events[1].Text)
}

func TestDecodeErrorEventDefaults(t *testing.T) {
	body := "event: error\ndata: {}\n\n"
	rec := &recorder{}
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))
	require.Equal(t, []Kind{KindError}, rec.kinds())
	assert.Equal(t, "unknown", rec.events[0].Error.Code)
	assert.Equal(t, "Unknown error", rec.events[0].Error.Message)
}

func TestDecodeSynthesizesCompletionOnEarlyClose(t *testing.T) {
	bodies := []string{
		"",
		"event: token\ndata: {\"text\":\"partial\"}\n\n",
		"event: token\ndata: {\"text\":\"partial\"}\n\nevent: token\ndata: {\"text\":\"tail\"}",
	}
	for _, body := range bodies {
		rec := &recorder{}
		require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))

		var truncated, done int
		for _, e := range rec.events {
			switch e.Kind {
			case KindTruncated:
				truncated++
				assert.True(t, e.Synthesized)
			case KindDone:
				done++
				assert.True(t, e.Synthesized)
				assert.Equal(t, DonePayload{}, e.Done)
			}
		}
		assert.Equal(t, 1, truncated, "body %q", body)
		assert.Equal(t, 1, done, "body %q", body)
		require.NotEmpty(t, rec.events)
		assert.Equal(t, KindDone, rec.events[len(rec.events)-1].Kind)
	}
}

func TestDecodeServerTruncatedThenClosed(t *testing.T) {
	body := "event: token\ndata: {\"text\":\"partial\"}\n\nevent: truncated\ndata: {}\n\n"
	rec := &recorder{}
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))

	require.Equal(t, []Kind{KindToken, KindTruncated, KindDone}, rec.kinds())
	assert.False(t, rec.events[1].Synthesized, "the server's truncated event is kept")
	assert.True(t, rec.events[2].Synthesized)
}

func TestDecodeNoSynthesisAfterError(t *testing.T) {
	body := "event: token\ndata: {\"text\":\"a\"}\n\nevent: error\ndata: {\"code\":\"quota\",\"message\":\"over\"}\n\n"
	rec := &recorder{}
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), rec))
	assert.Equal(t, []Kind{KindToken, KindError}, rec.kinds())
}

func TestDecoderCancelSuppressesEverything(t *testing.T) {
	body := "event: token\ndata: {\"text\":\"one\"}\n\nevent: token\ndata: {\"text\":\"two\"}\n\nevent: token\ndata: {\"text\":\"three\"}\n\n"
	dec := NewDecoder(strings.NewReader(body))
	calls := 0
	err := dec.Run(context.Background(), HandlerFunc(func(e Event) {
		calls++
		dec.Cancel()
	}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.True(t, dec.Cancelled())
}

func TestDecodeContextCancelSuppressesEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Decode(ctx, strings.NewReader("event: token\ndata: {\"text\":\"one\"}\n\nevent: token\ndata: {\"text\":\"two\"}\n\n"), HandlerFunc(func(e Event) {
		calls++
		cancel()
	}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDecodeCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Decode(ctx, strings.NewReader(""), HandlerFunc(func(Event) { calls++ }))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDecodeTransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("event: token\ndata: {\"text\":\"a\"}\n\n"), iotest.ErrReader(boom))
	rec := &recorder{}
	err := Decode(context.Background(), r, rec)

	assert.ErrorIs(t, err, boom)
	require.Equal(t, []Kind{KindToken, KindError}, rec.kinds())
	assert.Equal(t, CodeStreamError, rec.events[1].Error.Code)
}

func TestCallbacksDispatch(t *testing.T) {
	var tokens []string
	var doneID string
	truncated := false
	cb := Callbacks{
		OnToken:     func(text string) { tokens = append(tokens, text) },
		OnTruncated: func() { truncated = true },
		OnDone:      func(p DonePayload) { doneID = p.MessageID },
	}
	body := "event: token\ndata: {\"text\":\"x\"}\n\nevent: truncated\ndata: {}\n\nevent: citation\ndata: {\"ref_index\":1}\n\nevent: done\ndata: {\"message_id\":\"m\",\"can_continue\":true,\"continuation_count\":1}\n\n"
	require.NoError(t, Decode(context.Background(), strings.NewReader(body), cb))
	assert.Equal(t, []string{"x"}, tokens)
	assert.True(t, truncated)
	assert.Equal(t, "m", doneID)
}
