package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrPaymentRequired is returned for 402 responses.
	ErrPaymentRequired = errors.New("payment required")
	// ErrProcessing is returned for 409 responses while the document is still
	// being processed.
	ErrProcessing = errors.New("document still processing")
	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrDocumentFailed means the backend gave up processing a document.
	ErrDocumentFailed = errors.New("document processing failed")
)

// StatusError is a non-2xx response. It unwraps to one of the sentinels above
// when the status code has a dedicated meaning.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusPaymentRequired:
		return ErrPaymentRequired
	case http.StatusConflict:
		return ErrProcessing
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}
