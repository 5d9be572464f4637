package api

import (
	"context"
	"errors"

	"github.com/csheth/docscout/internal/stream"
)

// ChatRequest is the body of the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// ContinueRequest resumes a truncated answer.
type ContinueRequest struct {
	MessageID string `json:"message_id,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// Chat posts a message and decodes the answer stream into h. It returns once
// the stream reaches a terminal event, the body closes, or ctx ends. Non-2xx
// responses return a *StatusError before any event is delivered.
func (c *Client) Chat(ctx context.Context, req ChatRequest, h stream.Handler) error {
	if c.session == "" {
		return errors.New("api: session id is required for chat")
	}
	return c.streamTo(ctx, c.endpoint("sessions", c.session, "chat"), req, h)
}

// Continue resumes the last truncated answer with the same event contract as
// Chat.
func (c *Client) Continue(ctx context.Context, req ContinueRequest, h stream.Handler) error {
	if c.session == "" {
		return errors.New("api: session id is required for chat")
	}
	return c.streamTo(ctx, c.endpoint("sessions", c.session, "chat", "continue"), req, h)
}

func (c *Client) streamTo(ctx context.Context, target string, payload any, h stream.Handler) error {
	resp, err := c.postStream(ctx, target, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return stream.Decode(ctx, resp.Body, h)
}
