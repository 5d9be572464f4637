package tui

import (
	"context"
	"time"

	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/highlight"
	"github.com/csheth/docscout/internal/viewer"
)

// Loader produces the document to show. It runs off the UI goroutine.
type Loader func(ctx context.Context) (*document.Document, error)

// Config wires runtime options into the TUI program.
type Config struct {
	// Session answers questions. Nil disables the composer.
	Session   *conversation.Session
	SessionID string
	Load      Loader
	// WatchPath, when set, reloads the document whenever the file changes.
	WatchPath string
	TextStore *document.TextStore

	Matcher        highlight.Matcher
	Snippet        highlight.SnippetOptions
	Viewer         viewer.Options
	SearchDebounce time.Duration
	ScrollWindow   time.Duration
	ExportDir      string
	Now            func() time.Time
}

type stage int

const (
	stageLoading stage = iota
	stageDisplay
	stageSearch
	stageFailed
)

type focus int

const (
	focusComposer focus = iota
	focusDocument
)

const heroTagline = "Ask the document. Every claim points back to its page."

const (
	minPaneWidth   = 30
	splitMinWidth  = 100
	paneGutter     = 2
	docGutterWidth = 2
)

type docLoadedMsg struct {
	doc *document.Document
	err error
}

type docChangedMsg struct{ path string }

type indexedMsg struct {
	gen uint64
	ok  bool
}

type storeChangedMsg struct{}

type streamResultMsg struct {
	kind jobKind
	err  error
}

type exportResultMsg struct {
	path string
	err  error
}

type searchDebounceMsg struct{ ticket uint64 }

type scrollTickMsg struct{ nonce uint64 }
