// Package viewer tracks which pages of a long document are near the viewport
// so that only those are rendered, and where rendered citation anchors are.
package viewer

import (
	"math"
	"sort"
	"sync"
)

const (
	// DefaultBuffer is how many pages beyond the intersecting set stay mounted.
	DefaultBuffer = 3
	// DefaultPrefetch widens the viewport by this many viewport heights on
	// each side when deciding what intersects.
	DefaultPrefetch = 2.0
	// DefaultScale is the placeholder height, in rows, of a page whose height
	// equals its width.
	DefaultScale = 40.0

	fallbackAspect = 792.0 / 612.0
)

// Size is a page's intrinsic size in native units.
type Size struct {
	Width, Height float64
}

// Aspect returns height over width, falling back to US Letter.
func (s Size) Aspect() float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return fallbackAspect
	}
	return s.Height / s.Width
}

// Range is an inclusive page window.
type Range struct {
	Start, End int
}

// Contains reports whether page lies in r.
func (r Range) Contains(page int) bool {
	return page >= r.Start && page <= r.End
}

// Geometry locates a rendered anchor within its page, in rows from the page
// top.
type Geometry struct {
	Top    int
	Height int
}

type anchorKey struct {
	page  int
	index int
}

// Options configure a Tracker.
type Options struct {
	Buffer   int
	Prefetch float64
	Scale    float64
}

// Tracker holds the visibility state for one document. Pages are 1-based.
type Tracker struct {
	mu sync.Mutex

	buffer   int
	prefetch float64
	scale    float64

	docID        string
	aspects      []float64
	rendered     map[int]int
	intersecting []int
	window       Range
	center       int
	programmatic bool
	anchors      map[anchorKey]Geometry
}

// NewTracker returns an empty tracker.
func NewTracker(opts Options) *Tracker {
	if opts.Buffer < 0 {
		opts.Buffer = 0
	} else if opts.Buffer == 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = DefaultPrefetch
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	t := &Tracker{buffer: opts.Buffer, prefetch: opts.Prefetch, scale: opts.Scale}
	t.resetLocked("", nil)
	return t
}

// SetDocument switches to a document. When the identity changes every piece
// of state is cleared and the aspect ratios are recomputed from sizes. It
// reports whether a reset happened.
func (t *Tracker) SetDocument(id string, sizes []Size) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == t.docID && len(sizes) == len(t.aspects) {
		return false
	}
	t.resetLocked(id, sizes)
	return true
}

// Reset clears all state for the current document identity.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked("", nil)
}

func (t *Tracker) resetLocked(id string, sizes []Size) {
	t.docID = id
	t.aspects = make([]float64, len(sizes))
	for i, s := range sizes {
		t.aspects[i] = s.Aspect()
	}
	t.rendered = map[int]int{}
	t.intersecting = nil
	t.anchors = map[anchorKey]Geometry{}
	t.programmatic = false
	t.center = 0
	if len(sizes) > 0 {
		t.center = 1
	}
	t.window = t.clampLocked(1, 1+t.buffer)
}

// DocumentID returns the current document identity.
func (t *Tracker) DocumentID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.docID
}

// PageCount returns the number of pages.
func (t *Tracker) PageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.aspects)
}

// SetScale changes the zoom. Rendered heights are kept; they are replaced as
// pages re-render.
func (t *Tracker) SetScale(scale float64) {
	if scale <= 0 {
		return
	}
	t.mu.Lock()
	t.scale = scale
	t.mu.Unlock()
}

// Scale returns the current zoom.
func (t *Tracker) Scale() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scale
}

// PlaceholderHeight is the height, in rows, reserved for an unrendered page.
func (t *Tracker) PlaceholderHeight(page int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.placeholderLocked(page)
}

func (t *Tracker) placeholderLocked(page int) int {
	aspect := fallbackAspect
	if page >= 1 && page <= len(t.aspects) {
		aspect = t.aspects[page-1]
	}
	rows := int(math.Round(aspect * t.scale))
	if rows < 1 {
		rows = 1
	}
	return rows
}

// SetRenderedHeight records the real height of a mounted page.
func (t *Tracker) SetRenderedHeight(page, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rows < 1 {
		rows = 1
	}
	t.rendered[page] = rows
}

// Height returns the rendered height of page when known, otherwise the
// placeholder height.
func (t *Tracker) Height(page int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.heightLocked(page)
}

func (t *Tracker) heightLocked(page int) int {
	if rows, ok := t.rendered[page]; ok {
		return rows
	}
	return t.placeholderLocked(page)
}

// PageTop returns the row at which page starts.
func (t *Tracker) PageTop(page int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageTopLocked(page)
}

func (t *Tracker) pageTopLocked(page int) int {
	top := 0
	for p := 1; p < page && p <= len(t.aspects); p++ {
		top += t.heightLocked(p)
	}
	return top
}

// TotalHeight returns the height of the whole document in rows.
func (t *Tracker) TotalHeight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageTopLocked(len(t.aspects) + 1)
}

// PageAt returns the page covering row.
func (t *Tracker) PageAt(row int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	top := 0
	for p := 1; p <= len(t.aspects); p++ {
		h := t.heightLocked(p)
		if row < top+h {
			return p
		}
		top += h
	}
	return len(t.aspects)
}

// Observe derives the intersecting pages from a scroll offset. The viewport
// is widened by the prefetch margin on both sides so pages count as visible
// shortly before they scroll into view.
func (t *Tracker) Observe(yOffset, viewportHeight int) {
	t.SetIntersecting(t.visible(yOffset, viewportHeight))
}

func (t *Tracker) visible(yOffset, viewportHeight int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	margin := int(math.Ceil(t.prefetch * float64(viewportHeight)))
	lo := yOffset - margin
	hi := yOffset + viewportHeight + margin

	var pages []int
	top := 0
	for p := 1; p <= len(t.aspects); p++ {
		h := t.heightLocked(p)
		if top < hi && top+h > lo {
			pages = append(pages, p)
		}
		if top >= hi {
			break
		}
		top += h
	}
	return pages
}

// SetIntersecting replaces the intersecting set, recentres the page
// indicator and moves the mount window around it. An empty set keeps the
// previous window.
func (t *Tracker) SetIntersecting(pages []int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setIntersectingLocked(pages)
}

func (t *Tracker) setIntersectingLocked(pages []int) {
	seen := map[int]bool{}
	set := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > len(t.aspects) || seen[p] {
			continue
		}
		seen[p] = true
		set = append(set, p)
	}
	sort.Ints(set)
	t.intersecting = set
	if len(set) == 0 {
		return
	}
	if !t.programmatic {
		t.center = set[len(set)/2]
	}
	t.window = t.clampLocked(set[0]-t.buffer, set[len(set)-1]+t.buffer)
}

// Intersecting returns the sorted intersecting pages.
func (t *Tracker) Intersecting() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.intersecting...)
}

// Center is the page shown in the page indicator: the median intersecting
// page, frozen while a programmatic scroll is in progress.
func (t *Tracker) Center() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.center
}

// Window returns the mounted page range.
func (t *Tracker) Window() Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Mounted reports whether page should be rendered in full.
func (t *Tracker) Mounted(page int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window.Contains(page)
}

// Ensure widens the window so page and its buffer are mounted.
func (t *Tracker) Ensure(page int) Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	want := t.clampLocked(page-t.buffer, page+t.buffer)
	if want.Start < t.window.Start {
		t.window.Start = want.Start
	}
	if want.End > t.window.End {
		t.window.End = want.End
	}
	return t.window
}

func (t *Tracker) clampLocked(start, end int) Range {
	n := len(t.aspects)
	if n == 0 {
		return Range{}
	}
	if start < 1 {
		start = 1
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// SetProgrammatic marks whether a scroll in progress was started by
// navigation rather than the user.
func (t *Tracker) SetProgrammatic(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.programmatic = v
	if !v && len(t.intersecting) > 0 {
		t.center = t.intersecting[len(t.intersecting)/2]
	}
}

// Programmatic reports whether a navigation scroll is in progress.
func (t *Tracker) Programmatic() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.programmatic
}

// RegisterAnchor records where the highlight for citation index sits on a
// rendered page. The renderer calls it during layout.
func (t *Tracker) RegisterAnchor(page, index int, g Geometry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchors[anchorKey{page: page, index: index}] = g
}

// Anchor looks up a registered anchor.
func (t *Tracker) Anchor(page, index int) (Geometry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.anchors[anchorKey{page: page, index: index}]
	return g, ok
}

// ClearAnchors forgets every anchor on page, or on all pages when page is 0.
func (t *Tracker) ClearAnchors(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if page == 0 {
		t.anchors = map[anchorKey]Geometry{}
		return
	}
	for k := range t.anchors {
		if k.page == page {
			delete(t.anchors, k)
		}
	}
}
