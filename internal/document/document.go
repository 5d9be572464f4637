// Package document loads documents into pages of text with optional
// positioned fragments, from the backend or from local files.
package document

import (
	"errors"
	"strings"

	"github.com/csheth/docscout/internal/highlight"
	"github.com/csheth/docscout/internal/viewer"
)

// ErrNoPages is returned when a source yields no usable pages.
var ErrNoPages = errors.New("document has no pages")

const (
	letterWidth  = 612.0
	letterHeight = 792.0
)

// Kind tells the renderer which highlight matcher applies.
type Kind int

const (
	// KindText documents have no coordinates; citations are matched by
	// snippet.
	KindText Kind = iota
	// KindPaginated documents carry positioned fragments; citations are
	// matched by bounding box.
	KindPaginated
)

func (k Kind) String() string {
	if k == KindPaginated {
		return "paginated"
	}
	return "text"
}

// Fragment is a positioned run of page text. Start and End are byte offsets
// of the run inside Page.Text.
type Fragment struct {
	highlight.Fragment
	Text       string
	Start, End int
}

// Page is one page. Width and Height are the intrinsic size in native units.
type Page struct {
	Number    int
	Width     float64
	Height    float64
	Text      string
	Fragments []Fragment
}

// Document is a loaded document.
type Document struct {
	ID     string
	Title  string
	Source string
	Kind   Kind
	Pages  []Page
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// Page returns the 1-based page n.
func (d *Document) Page(n int) (Page, bool) {
	if d == nil || n < 1 || n > len(d.Pages) {
		return Page{}, false
	}
	return d.Pages[n-1], true
}

// Sizes returns the intrinsic size of every page for placeholder sizing.
func (d *Document) Sizes() []viewer.Size {
	sizes := make([]viewer.Size, len(d.Pages))
	for i, p := range d.Pages {
		sizes[i] = viewer.Size{Width: p.Width, Height: p.Height}
	}
	return sizes
}

// PageTexts returns the raw text of every page, for the search cache.
func (d *Document) PageTexts() []string {
	texts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		texts[i] = p.Text
	}
	return texts
}

// FragmentAt returns the index of the fragment covering byte offset off, or
// -1.
func (p Page) FragmentAt(off int) int {
	for i, f := range p.Fragments {
		if off >= f.Start && off < f.End {
			return i
		}
	}
	return -1
}

func titleFromText(pages []Page, fallback string) string {
	for _, p := range pages {
		for _, line := range strings.Split(p.Text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				if len(line) > 80 {
					line = line[:80]
				}
				return line
			}
		}
	}
	return fallback
}
