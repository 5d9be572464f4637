package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/docscout/internal/api"
	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/stream"
)

// scriptedStreamer replays events, optionally waiting on release before the
// last one.
type scriptedStreamer struct {
	mu        sync.Mutex
	events    []stream.Event
	err       error
	started   chan struct{}
	release   chan struct{}
	chats     []api.ChatRequest
	continues []api.ContinueRequest
}

func (f *scriptedStreamer) Chat(ctx context.Context, req api.ChatRequest, h stream.Handler) error {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	f.mu.Unlock()
	return f.play(ctx, h)
}

func (f *scriptedStreamer) Continue(ctx context.Context, req api.ContinueRequest, h stream.Handler) error {
	f.mu.Lock()
	f.continues = append(f.continues, req)
	f.mu.Unlock()
	return f.play(ctx, h)
}

func (f *scriptedStreamer) play(ctx context.Context, h stream.Handler) error {
	if f.started != nil {
		close(f.started)
	}
	for i, e := range f.events {
		if f.release != nil && i == len(f.events)-1 {
			select {
			case <-f.release:
			case <-ctx.Done():
			}
		}
		// The fake ignores cancellation on purpose so the session guard is
		// what keeps late events out of the store.
		h.HandleEvent(e)
	}
	return f.err
}

func newTestSession(s Streamer) *Session {
	n := 0
	return NewSession(NewStore(), s, Options{
		Locale: "en",
		NewID:  func() string { n++; return fmt.Sprintf("id-%d", n) },
		Now:    func() time.Time { return time.Unix(0, 0) },
	})
}

func token(text string) stream.Event {
	return stream.Event{Kind: stream.KindToken, Text: text}
}

func TestSendMessageAppliesStreamInOrder(t *testing.T) {
	fake := &scriptedStreamer{events: []stream.Event{
		token("Net "),
		token("income "),
		{Kind: stream.KindCitation, Citation: citation.Citation{RefIndex: 1, Page: 2, Offset: 11}},
		token("rose."),
		{Kind: stream.KindDone, Done: stream.DonePayload{MessageID: "srv-1"}},
	}}
	sess := newTestSession(fake)

	require.NoError(t, sess.SendMessage(context.Background(), "  what rose?  "))

	msgs := sess.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "what rose?", msgs[0].Text)
	assert.Empty(t, msgs[0].Citations)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Net income rose.", msgs[1].Text)
	require.Len(t, msgs[1].Citations, 1)
	assert.Equal(t, "srv-1", msgs[1].ServerID)
	assert.False(t, sess.Store().IsStreaming())
	assert.Equal(t, "en", fake.chats[0].Locale)
}

func TestSendMessageRejectedWhileStreaming(t *testing.T) {
	fake := &scriptedStreamer{
		events:  []stream.Event{token("a"), {Kind: stream.KindDone}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sess := newTestSession(fake)

	done := make(chan error, 1)
	go func() { done <- sess.SendMessage(context.Background(), "first") }()
	<-fake.started
	require.True(t, sess.Store().IsStreaming())

	err := sess.SendMessage(context.Background(), "second")
	assert.ErrorIs(t, err, ErrStreaming)
	assert.Equal(t, 2, sess.Store().Len())
	assert.ErrorIs(t, sess.RegenerateLastResponse(context.Background()), ErrStreaming)

	close(fake.release)
	require.NoError(t, <-done)
	assert.Len(t, fake.chats, 1)
	assert.False(t, sess.Store().IsStreaming())
}

func TestSendMessageRejectsBlankInput(t *testing.T) {
	sess := newTestSession(&scriptedStreamer{})
	assert.ErrorIs(t, sess.SendMessage(context.Background(), "   "), ErrEmptyMessage)
	assert.Zero(t, sess.Store().Len())
}

func TestStopStreamingDropsLateEvents(t *testing.T) {
	fake := &scriptedStreamer{
		events:  []stream.Event{token("kept"), token(" dropped")},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sess := newTestSession(fake)

	done := make(chan error, 1)
	go func() { done <- sess.SendMessage(context.Background(), "q") }()
	<-fake.started
	// Wait for the first token to land before stopping.
	require.Eventually(t, func() bool {
		last, _ := sess.Store().Last()
		return last.Text == "kept"
	}, time.Second, time.Millisecond)

	sess.StopStreaming()
	assert.False(t, sess.Store().IsStreaming())
	close(fake.release)
	require.NoError(t, <-done)

	last, _ := sess.Store().Last()
	assert.Equal(t, "kept", last.Text)
	assert.False(t, last.IsError)
	assert.False(t, sess.Store().IsStreaming())
}

func TestStatusErrorsBecomeNotices(t *testing.T) {
	cases := []struct {
		code   int
		notice Notice
		text   string
	}{
		{code: 402, notice: NoticePaywall, text: PaywallText},
		{code: 409, notice: NoticeProcessing, text: ProcessingText},
		{code: 429, notice: NoticeRateLimited, text: RateLimitedText},
	}
	for _, tc := range cases {
		sess := newTestSession(&scriptedStreamer{err: &api.StatusError{Code: tc.code}})
		err := sess.SendMessage(context.Background(), "q")
		require.Error(t, err)

		msgs := sess.Store().Messages()
		require.Len(t, msgs, 2, "status %d", tc.code)
		assert.True(t, msgs[1].IsError)
		assert.Equal(t, tc.notice, msgs[1].Notice)
		assert.Equal(t, tc.text, msgs[1].Text)
		assert.False(t, sess.Store().IsStreaming())
	}
}

func TestTransportErrorShownInline(t *testing.T) {
	sess := newTestSession(&scriptedStreamer{
		events: []stream.Event{token("partial")},
		err:    errors.New("connection refused"),
	})
	err := sess.SendMessage(context.Background(), "q")
	require.Error(t, err)

	msgs := sess.Store().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "partial", msgs[1].Text)
	assert.True(t, msgs[2].IsError)
	assert.Contains(t, msgs[2].Text, "connection refused")
	assert.False(t, sess.Store().IsStreaming())
}

func TestErrorEventNotDuplicated(t *testing.T) {
	sess := newTestSession(&scriptedStreamer{
		events: []stream.Event{{Kind: stream.KindError, Error: stream.ErrorPayload{Code: "stream_error", Message: "reset"}}},
		err:    errors.New("read stream: reset"),
	})
	require.Error(t, sess.SendMessage(context.Background(), "q"))

	msgs := sess.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "reset", msgs[1].Text)
	assert.Equal(t, NoticeError, msgs[1].Notice)
}

func TestParseErrorIsNonFatal(t *testing.T) {
	sess := newTestSession(&scriptedStreamer{events: []stream.Event{
		token("a"),
		{Kind: stream.KindParseError, Error: stream.ErrorPayload{Code: "parse_error"}},
		token("b"),
		{Kind: stream.KindDone},
	}})
	require.NoError(t, sess.SendMessage(context.Background(), "q"))
	last, _ := sess.Store().Last()
	assert.Equal(t, "ab", last.Text)
	assert.False(t, last.IsError)
}

func TestRegenerateTrimsToLastQuestion(t *testing.T) {
	fake := &scriptedStreamer{events: []stream.Event{token("first answer"), {Kind: stream.KindDone}}}
	sess := newTestSession(fake)
	require.NoError(t, sess.SendMessage(context.Background(), "why?"))

	fake.events = []stream.Event{token("second answer"), {Kind: stream.KindDone}}
	require.NoError(t, sess.RegenerateLastResponse(context.Background()))

	msgs := sess.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "why?", msgs[0].Text)
	assert.Equal(t, "second answer", msgs[1].Text)
	require.Len(t, fake.chats, 2)
	assert.Equal(t, "why?", fake.chats[1].Message)
}

func TestRegenerateWithoutQuestion(t *testing.T) {
	sess := newTestSession(&scriptedStreamer{})
	assert.ErrorIs(t, sess.RegenerateLastResponse(context.Background()), ErrNothingToRegenerate)
}

func TestContinueAppendsToTruncatedAnswer(t *testing.T) {
	fake := &scriptedStreamer{events: []stream.Event{
		token("The total was"),
		{Kind: stream.KindTruncated},
		{Kind: stream.KindDone, Done: stream.DonePayload{MessageID: "srv-9", CanContinue: true}},
	}}
	sess := newTestSession(fake)
	require.NoError(t, sess.SendMessage(context.Background(), "total?"))

	last, _ := sess.Store().Last()
	require.True(t, last.Truncated)
	require.True(t, last.CanContinue)

	fake.events = []stream.Event{token(" 42."), {Kind: stream.KindDone, Done: stream.DonePayload{MessageID: "srv-9", ContinuationCount: 1}}}
	require.NoError(t, sess.Continue(context.Background()))

	msgs := sess.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "The total was 42.", msgs[1].Text)
	assert.False(t, msgs[1].CanContinue)
	assert.Equal(t, 1, msgs[1].ContinuationCount)
	require.Len(t, fake.continues, 1)
	assert.Equal(t, "srv-9", fake.continues[0].MessageID)

	assert.ErrorIs(t, sess.Continue(context.Background()), ErrNothingToContinue)
}
