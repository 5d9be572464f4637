// Package citation models answer citations and their display numbering.
package citation

import (
	"math"
	"sort"
)

// NormalizedBox locates a region on a page. Coordinates are fractions of the
// page width and height with the origin at the top-left corner. Page is zero
// when the box belongs to the citation's own page.
type NormalizedBox struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	Page int     `json:"page,omitempty"`
}

// Valid reports whether the box can be matched against rendered text. A zero
// height is accepted and means the height is unknown.
func (b NormalizedBox) Valid() bool {
	for _, v := range []float64{b.X, b.Y, b.W, b.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.X < 0 || b.X > 1 || b.Y < 0 || b.Y > 1 {
		return false
	}
	if b.W <= 0 || b.W > 1 {
		return false
	}
	return b.H >= 0 && b.H <= 1
}

// Citation points from a span of answer text to a region of the source
// document. Offset is the character position of the marker in the answer.
type Citation struct {
	RefIndex         int             `json:"ref_index"`
	ChunkID          string          `json:"chunk_id"`
	Page             int             `json:"page"`
	PageEnd          int             `json:"page_end,omitempty"`
	BoundingBoxes    []NormalizedBox `json:"bboxes"`
	TextSnippet      string          `json:"text_snippet"`
	Offset           int             `json:"offset"`
	DocumentID       string          `json:"document_id,omitempty"`
	DocumentFilename string          `json:"document_filename,omitempty"`
}

// Boxes returns the citation's boxes with an unset page filled in from the
// citation page.
func (c Citation) Boxes() []NormalizedBox {
	return WithDefaultPage(c.BoundingBoxes, c.Page)
}

// WithDefaultPage copies boxes, assigning page to every box without one.
func WithDefaultPage(boxes []NormalizedBox, page int) []NormalizedBox {
	if len(boxes) == 0 {
		return nil
	}
	out := make([]NormalizedBox, len(boxes))
	for i, b := range boxes {
		if b.Page == 0 {
			b.Page = page
		}
		out[i] = b
	}
	return out
}

// Renumber remaps reference indices to a dense 1..N sequence ordered by where
// each index first appears in the answer text, which is its lowest offset.
// Every occurrence of an index keeps its own boxes and snippet and receives
// the shared new number. Applying Renumber to its own output returns an
// equal list.
func Renumber(cs []Citation) []Citation {
	if len(cs) == 0 {
		return nil
	}

	type entry struct {
		ref    int
		offset int
	}
	position := make(map[int]int, len(cs))
	unique := make([]entry, 0, len(cs))
	for _, c := range cs {
		if idx, ok := position[c.RefIndex]; ok {
			if c.Offset < unique[idx].offset {
				unique[idx].offset = c.Offset
			}
			continue
		}
		position[c.RefIndex] = len(unique)
		unique = append(unique, entry{ref: c.RefIndex, offset: c.Offset})
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].offset < unique[j].offset
	})

	table := make(map[int]int, len(unique))
	for i, e := range unique {
		table[e.ref] = i + 1
	}
	return remap(cs, table)
}

// remap rewrites indices through table. Indices missing from table are kept.
func remap(cs []Citation, table map[int]int) []Citation {
	out := make([]Citation, len(cs))
	for i, c := range cs {
		if next, ok := table[c.RefIndex]; ok {
			c.RefIndex = next
		}
		c.BoundingBoxes = append([]NormalizedBox(nil), c.BoundingBoxes...)
		out[i] = c
	}
	return out
}

// Unique returns the first citation for each reference index, ordered by
// index. It is intended for renumbered lists.
func Unique(cs []Citation) []Citation {
	seen := make(map[int]bool, len(cs))
	out := make([]Citation, 0, len(cs))
	for _, c := range cs {
		if seen[c.RefIndex] {
			continue
		}
		seen[c.RefIndex] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RefIndex < out[j].RefIndex
	})
	return out
}
