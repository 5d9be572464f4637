package document

import (
	"log"
	"sort"

	"github.com/csheth/docscout/internal/api"
)

// FromRemote builds a text document from backend metadata and extracted
// page text. Pages missing from the text response are kept empty so page
// numbers line up with citations.
func FromRemote(info api.DocumentInfo, texts []api.PageText) (*Document, error) {
	count := info.PageCount
	if n := len(info.Pages); n > count {
		count = n
	}
	for _, t := range texts {
		if t.Number > count {
			count = t.Number
		}
	}
	if count == 0 {
		return nil, ErrNoPages
	}

	doc := &Document{
		ID:     info.ID,
		Title:  info.Filename,
		Source: info.Filename,
		Kind:   KindText,
		Pages:  make([]Page, count),
	}
	for i := range doc.Pages {
		doc.Pages[i] = Page{Number: i + 1, Width: letterWidth, Height: letterHeight}
	}
	for _, p := range info.Pages {
		if p.Number < 1 || p.Number > count || p.Width <= 0 || p.Height <= 0 {
			continue
		}
		doc.Pages[p.Number-1].Width = p.Width
		doc.Pages[p.Number-1].Height = p.Height
	}

	sorted := append([]api.PageText(nil), texts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	for _, t := range sorted {
		if t.Number < 1 || t.Number > count {
			continue
		}
		doc.Pages[t.Number-1].Text = t.Text
	}
	if doc.Title == "" {
		doc.Title = titleFromText(doc.Pages, info.ID)
	}
	return doc, nil
}

// AttachLayout copies positioned fragments from a parsed copy of the same
// file and switches the document to box matching. Text is replaced too, so
// fragment offsets stay valid for search. A page-count mismatch leaves the
// document untouched.
func (d *Document) AttachLayout(layout *Document) bool {
	if layout == nil || layout.PageCount() != d.PageCount() {
		if layout != nil {
			log.Printf("[document] layout has %d pages, document has %d; keeping text view", layout.PageCount(), d.PageCount())
		}
		return false
	}
	positioned := 0
	for i := range d.Pages {
		lp := layout.Pages[i]
		if len(lp.Fragments) == 0 {
			continue
		}
		d.Pages[i].Text = lp.Text
		d.Pages[i].Fragments = lp.Fragments
		d.Pages[i].Width = lp.Width
		d.Pages[i].Height = lp.Height
		positioned++
	}
	if positioned == 0 {
		return false
	}
	d.Kind = KindPaginated
	return true
}
