// Package search runs full-text queries over a document's cached page text.
package search

import (
	"log"
	"sync"

	"github.com/csheth/docscout/internal/highlight"
)

// Match is one occurrence of the query. Page is 1-based. What Index means
// depends on the producer: Index.Matches sets the 0-based occurrence rank
// within the page, which the geometric renderer uses; Index.Offsets sets the
// byte offset into the page text, which the plain-text renderer uses.
type Match struct {
	Page  int
	Index int
}

// Index caches lowercase page text for one document. Loads are versioned so
// a slow extraction for a document the user has left cannot overwrite the
// cache for the current one.
type Index struct {
	mu    sync.RWMutex
	docID string
	gen   uint64
	ready bool
	pages []highlight.Folded
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// BeginLoad starts caching docID and returns the generation the caller must
// hand back to Complete. Any earlier cache is dropped.
func (ix *Index) BeginLoad(docID string) uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.gen++
	ix.docID = docID
	ix.ready = false
	ix.pages = nil
	return ix.gen
}

// Complete stores extracted page text. It reports false, and stores nothing,
// when gen is no longer current.
func (ix *Index) Complete(gen uint64, pages []string) bool {
	folded := make([]highlight.Folded, len(pages))
	for i, p := range pages {
		folded[i] = highlight.Fold(p)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if gen != ix.gen {
		log.Printf("[search] discarding stale text for generation %d (current %d)", gen, ix.gen)
		return false
	}
	ix.pages = folded
	ix.ready = true
	return true
}

// Generation returns the current load generation.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.gen
}

// DocumentID returns the document being cached.
func (ix *Index) DocumentID() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.docID
}

// Ready reports whether page text is cached.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// PageCount returns the number of cached pages.
func (ix *Index) PageCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.pages)
}

// Matches returns every case-insensitive occurrence of query in page order
// and then occurrence order. Index is the occurrence rank within its page.
func (ix *Index) Matches(query string) []Match {
	return ix.scan(query, func(_ highlight.Folded, rank, _ int) int { return rank })
}

// Offsets is Matches with Index set to the byte offset of the occurrence in
// the original page text.
func (ix *Index) Offsets(query string) []Match {
	return ix.scan(query, func(page highlight.Folded, _, lowerOffset int) int {
		return page.Original(lowerOffset)
	})
}

func (ix *Index) scan(query string, index func(page highlight.Folded, rank, lowerOffset int) int) []Match {
	if query == "" {
		return nil
	}
	ix.mu.RLock()
	pages := ix.pages
	ix.mu.RUnlock()

	var out []Match
	for i, p := range pages {
		for rank, off := range p.IndexAll(query) {
			out = append(out, Match{Page: i + 1, Index: index(p, rank, off)})
		}
	}
	return out
}
