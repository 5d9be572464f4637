// Package highlight decides which parts of a rendered page a citation points
// at, either from bounding boxes or from the citation's text snippet.
package highlight

import (
	"github.com/csheth/docscout/internal/citation"
)

const (
	// DefaultTolerance absorbs disagreement between the citation source and
	// the text layout, as a fraction of the page dimension.
	DefaultTolerance = 0.02
	// DefaultLineHeight replaces unknown heights, as a fraction of the page
	// height.
	DefaultLineHeight = 0.015
)

// Rect is a normalized rectangle with a top-left origin.
type Rect struct {
	X, Y, W, H float64
}

// Bottom returns the far vertical edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Right returns the far horizontal edge.
func (r Rect) Right() float64 { return r.X + r.W }

// CenterY returns the vertical midpoint.
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Fragment is a run of rendered text in the page's native coordinate space,
// origin bottom-left, with Y at the bottom of the run.
type Fragment struct {
	X, Y, W, H float64
}

// Matcher holds the tunables for geometric matching.
type Matcher struct {
	Tolerance  float64
	LineHeight float64
}

// NewMatcher returns a matcher, substituting defaults for non-positive values.
func NewMatcher(tolerance, lineHeight float64) Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	return Matcher{Tolerance: tolerance, LineHeight: lineHeight}
}

// BoxesForPage returns the valid boxes on page. Boxes without a page belong to
// every page they are asked about.
func BoxesForPage(boxes []citation.NormalizedBox, page int) []citation.NormalizedBox {
	out := make([]citation.NormalizedBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Page != 0 && b.Page != page {
			continue
		}
		if b.Valid() {
			out = append(out, b)
		}
	}
	return out
}

// BoxRect converts a citation box to a Rect, estimating a zero height.
func (m Matcher) BoxRect(b citation.NormalizedBox) Rect {
	h := b.H
	if h == 0 {
		h = m.LineHeight
	}
	return Rect{X: b.X, Y: b.Y, W: b.W, H: h}
}

// FragmentRect maps a native fragment into normalized top-left space. The
// page size must be positive.
func (m Matcher) FragmentRect(f Fragment, pageW, pageH float64) Rect {
	if pageW <= 0 || pageH <= 0 {
		return Rect{}
	}
	h := f.H / pageH
	if h <= 0 {
		h = m.LineHeight
	}
	return Rect{
		X: f.X / pageW,
		Y: 1 - f.Y/pageH - h,
		W: f.W / pageW,
		H: h,
	}
}

// Overlaps reports whether a and b touch once each is grown by tol on every
// side.
func Overlaps(a, b Rect, tol float64) bool {
	return a.X <= b.Right()+tol &&
		b.X <= a.Right()+tol &&
		a.Y <= b.Bottom()+tol &&
		b.Y <= a.Bottom()+tol
}

// Match marks each fragment that overlaps one of boxes. The boxes must already
// be restricted to the page.
func (m Matcher) Match(fragments []Fragment, pageW, pageH float64, boxes []citation.NormalizedBox) []bool {
	marks := make([]bool, len(fragments))
	if len(boxes) == 0 {
		return marks
	}
	rects := make([]Rect, 0, len(boxes))
	for _, b := range boxes {
		if b.Valid() {
			rects = append(rects, m.BoxRect(b))
		}
	}
	for i, f := range fragments {
		fr := m.FragmentRect(f, pageW, pageH)
		for _, r := range rects {
			if Overlaps(fr, r, m.Tolerance) {
				marks[i] = true
				break
			}
		}
	}
	return marks
}

// Overlay returns the raw citation boxes on page. It does not depend on any
// text match, so scanned pages still show where a citation points.
func (m Matcher) Overlay(boxes []citation.NormalizedBox, page int) []Rect {
	onPage := BoxesForPage(boxes, page)
	out := make([]Rect, len(onPage))
	for i, b := range onPage {
		out[i] = m.BoxRect(b)
	}
	return out
}

// Anchor returns the first box of the first citation with a box on page.
// Navigation scrolls to it.
func (m Matcher) Anchor(cs []citation.Citation, page int) (Rect, bool) {
	for _, c := range cs {
		boxes := BoxesForPage(c.Boxes(), page)
		if len(boxes) > 0 {
			return m.BoxRect(boxes[0]), true
		}
	}
	return Rect{}, false
}
