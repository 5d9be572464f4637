// Package api talks to the document-chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/csheth/docscout/internal/logging"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPollInterval   = 2 * time.Second
	maxErrorBody          = 512
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	SessionID      string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	// HTTPClient overrides the transport for every request. Chat streams
	// never get a client-side timeout; only cancellation ends them.
	HTTPClient *http.Client
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	base    string
	session string
	timeout time.Duration
	poll    time.Duration
	http    *http.Client
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api: invalid base URL: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		base:    base,
		session: cfg.SessionID,
		timeout: timeout,
		poll:    poll,
		http:    client,
	}, nil
}

// SessionID returns the chat session the client posts to.
func (c *Client) SessionID() string {
	return c.session
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base + "/api/" + strings.Join(escaped, "/")
}

// getJSON performs a bounded GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// postStream sends a JSON body and returns the open response on success. The
// caller owns the body.
func (c *Client) postStream(ctx context.Context, target string, payload any) (*http.Response, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	logging.LogRequest("out", req.Method, req.URL.String(), 0)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	logging.LogRequest("in", req.Method, req.URL.String(), resp.StatusCode)
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}
