package tui

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/search"
	"github.com/csheth/docscout/internal/transcript"
)

const loadTimeout = 5 * time.Minute

func loadDocumentJob(load Loader) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, loadTimeout)
		defer cancel()
		doc, err := load(ctx)
		if err == nil && doc.PageCount() == 0 {
			err = document.ErrNoPages
		}
		return docLoadedMsg{doc: doc, err: err}, err
	}
}

// indexJob fills the search cache for one load generation and keeps a copy
// of the page text in the store.
func indexJob(index *search.Index, gen uint64, doc *document.Document, store *document.TextStore) jobRunner {
	pages := doc.PageTexts()
	return func(ctx context.Context) (tea.Msg, error) {
		ok := index.Complete(gen, pages)
		if ok && store != nil {
			if err := store.Save(ctx, doc); err != nil {
				log.Printf("[search] text store save failed: %v", err)
			}
		}
		return indexedMsg{gen: gen, ok: ok}, nil
	}
}

func sendMessageJob(session *conversation.Session, text string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := session.SendMessage(ctx, text)
		return streamResultMsg{kind: jobKindSend, err: err}, err
	}
}

func regenerateJob(session *conversation.Session) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := session.RegenerateLastResponse(ctx)
		return streamResultMsg{kind: jobKindRegenerate, err: err}, err
	}
}

func continueJob(session *conversation.Session) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := session.Continue(ctx)
		return streamResultMsg{kind: jobKindContinue, err: err}, err
	}
}

type exportRequest struct {
	dir        string
	documentID string
	title      string
	sessionID  string
	messages   []conversation.Message
	now        time.Time
}

// exportJob writes the markdown transcript next to a JSON snapshot store.
func exportJob(req exportRequest) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		dir := req.dir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportResultMsg{err: err}, err
		}
		path := filepath.Join(dir, transcript.Filename(req.title, ".md"))
		var b strings.Builder
		if err := transcript.WriteMarkdown(&b, req.title, req.messages, req.now); err != nil {
			return exportResultMsg{err: err}, err
		}
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return exportResultMsg{err: err}, err
		}
		snap := transcript.NewSnapshot(req.documentID, req.title, req.sessionID, req.messages, req.now)
		if err := transcript.Save(filepath.Join(dir, transcript.DefaultSnapshotFile), snap); err != nil {
			err = fmt.Errorf("save snapshot: %w", err)
			return exportResultMsg{path: path, err: err}, err
		}
		return exportResultMsg{path: path}, nil
	}
}

// waitForStore blocks until the transcript changes. It is re-armed after
// every delivery.
func waitForStore(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func waitForChange(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		path, ok := <-ch
		if !ok {
			return nil
		}
		return docChangedMsg{path: path}
	}
}
