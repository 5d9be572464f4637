package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/csheth/docscout/internal/api"
	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/document"
)

// source loads the document a command works on. A local file wins for
// display; the backend id is still used for chat.
type source struct {
	documentID string
	file       string
	client     *api.Client
	cache      *document.FileCache
	store      *document.TextStore
}

func (a *app) newClient() (*api.Client, error) {
	return api.New(api.Config{
		BaseURL:        a.cfg.APIBase,
		SessionID:      a.cfg.SessionID,
		RequestTimeout: a.cfg.RequestTimeout,
		PollInterval:   a.cfg.PollInterval,
	})
}

func (a *app) newSource(store *document.TextStore) (*source, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	src := &source{documentID: a.documentID, file: a.file, client: client, store: store}
	if a.documentID != "" {
		cache, err := document.NewFileCache(a.cfg.CacheDir, 0, nil)
		if err != nil {
			log.Printf("[cache] disabled: %v", err)
		} else {
			src.cache = cache
		}
	}
	return src, nil
}

// openTextStore returns nil when the store cannot be opened; search then
// works from freshly loaded text only.
func (a *app) openTextStore() *document.TextStore {
	store, err := document.OpenTextStore(a.cfg.TextStore)
	if err != nil {
		log.Printf("[search] text store unavailable: %v", err)
		return nil
	}
	return store
}

// newSession returns nil without a chat session id.
func (a *app) newSession(client *api.Client) *conversation.Session {
	if client == nil || a.cfg.SessionID == "" {
		return nil
	}
	return conversation.NewSession(conversation.NewStore(), client, conversation.Options{
		Mode:   a.cfg.Mode,
		Locale: a.cfg.Locale,
	})
}

// Load resolves the document. Remote documents fall back to the text
// store when the backend cannot be reached.
func (s *source) Load(ctx context.Context) (*document.Document, error) {
	if s.file != "" {
		doc, err := document.Load(s.file)
		if err != nil {
			return nil, err
		}
		if s.documentID != "" {
			doc.ID = s.documentID
		}
		return doc, nil
	}
	if s.documentID == "" {
		return nil, errors.New("no document selected")
	}
	doc, err := s.loadRemote(ctx)
	if err == nil {
		return doc, nil
	}
	if s.store != nil && !errors.Is(err, context.Canceled) {
		if stored, storeErr := s.store.Load(ctx, s.documentID); storeErr == nil {
			log.Printf("[api] using stored text for %s: %v", s.documentID, err)
			return stored, nil
		}
	}
	return nil, err
}

func (s *source) loadRemote(ctx context.Context) (*document.Document, error) {
	info, pages, file, err := s.client.LoadDocument(ctx, s.documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", s.documentID, err)
	}
	doc, err := document.FromRemote(info, pages)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = s.documentID
	}
	if file.URL == "" || s.cache == nil || !maybePDF(info.Filename) {
		return doc, nil
	}
	start := time.Now()
	path, err := s.cache.Fetch(ctx, s.documentID, file.URL)
	if err != nil {
		log.Printf("[cache] %s: %v", s.documentID, err)
		return doc, nil
	}
	layout, err := document.LoadPDF(path)
	if err != nil {
		log.Printf("[document] parse %s: %v", path, err)
		return doc, nil
	}
	if doc.AttachLayout(layout) {
		log.Printf("[document] positioned layout for %s ready in %s", s.documentID, time.Since(start))
	}
	return doc, nil
}

// maybePDF reports whether a backend filename can carry a PDF layout. An
// unnamed file is tried.
func maybePDF(name string) bool {
	return name == "" || strings.EqualFold(filepath.Ext(name), ".pdf")
}
