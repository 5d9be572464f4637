// Package navigation moves the document view to a citation or search hit.
package navigation

import (
	"sync"
	"time"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/viewer"
)

const (
	// DefaultScrollWindow is how long the page indicator stays frozen after a
	// navigation scroll.
	DefaultScrollWindow = 800 * time.Millisecond
	// SearchAnchor is the anchor index the renderer uses for the active search
	// hit. Citation anchors use the citation's display index, which starts
	// at 1.
	SearchAnchor = 0
)

// Target is where the view should scroll.
type Target struct {
	Page   int
	Offset int
	// Anchored is false when no anchor was registered and the view scrolls
	// to the top of the page instead.
	Anchored bool
}

// Options configure a Controller.
type Options struct {
	ScrollWindow time.Duration
	Now          func() time.Time
}

// Controller owns the current page, the active highlight boxes and a nonce
// that changes on every navigation, even to the same page.
type Controller struct {
	mu      sync.Mutex
	tracker *viewer.Tracker
	window  time.Duration
	now     func() time.Time

	page     int
	boxes    []citation.NormalizedBox
	active   citation.Citation
	hasCite  bool
	anchor   int
	nonce    uint64
	deadline time.Time
}

// New returns a controller driving tracker.
func New(tracker *viewer.Tracker, opts Options) *Controller {
	if opts.ScrollWindow <= 0 {
		opts.ScrollWindow = DefaultScrollWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{tracker: tracker, window: opts.ScrollWindow, now: opts.Now, page: 1}
}

// NavigateTo makes c the active citation: its page becomes current and its
// boxes on that page replace the highlight boxes. It returns the new nonce.
func (n *Controller) NavigateTo(c citation.Citation) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	page := c.Page
	if page < 1 {
		page = 1
	}
	n.page = page
	n.boxes = nil
	for _, b := range c.Boxes() {
		if b.Page == page {
			n.boxes = append(n.boxes, b)
		}
	}
	n.active = c
	n.hasCite = true
	n.anchor = c.RefIndex
	n.nonce++
	return n.nonce
}

// ScrollTo navigates to a search hit on page without touching the citation
// highlight.
func (n *Controller) ScrollTo(page int) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if page < 1 {
		page = 1
	}
	n.page = page
	n.anchor = SearchAnchor
	n.nonce++
	return n.nonce
}

// ClearHighlight drops the active citation.
func (n *Controller) ClearHighlight() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boxes = nil
	n.active = citation.Citation{}
	n.hasCite = false
}

// Page returns the current page.
func (n *Controller) Page() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.page
}

// Boxes returns the active highlight boxes.
func (n *Controller) Boxes() []citation.NormalizedBox {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]citation.NormalizedBox(nil), n.boxes...)
}

// Active returns the active citation.
func (n *Controller) Active() (citation.Citation, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active, n.hasCite
}

// Nonce returns the navigation counter.
func (n *Controller) Nonce() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nonce
}

// Prepare widens the tracker window so the target page is mounted. The
// renderer must lay out the window before Resolve so the anchor exists.
func (n *Controller) Prepare() viewer.Range {
	return n.tracker.Ensure(n.Page())
}

// Resolve computes the scroll offset for the current target. With an anchor
// the anchor's vertical center lands on the middle of the container;
// otherwise the page top lands on the container top.
func (n *Controller) Resolve(containerHeight int) Target {
	n.mu.Lock()
	page, anchor := n.page, n.anchor
	n.mu.Unlock()

	top := n.tracker.PageTop(page)
	g, ok := n.tracker.Anchor(page, anchor)
	if !ok {
		return Target{Page: page, Offset: n.clamp(top, containerHeight)}
	}
	center := top + g.Top + g.Height/2
	return Target{Page: page, Offset: n.clamp(center-containerHeight/2, containerHeight), Anchored: true}
}

// clamp keeps offset inside the scrollable range, so a target near the end
// of the document reports where the view actually stops.
func (n *Controller) clamp(offset, containerHeight int) int {
	if last := n.tracker.TotalHeight() - containerHeight; offset > last {
		offset = last
	}
	if offset < 0 {
		return 0
	}
	return offset
}

// BeginProgrammaticScroll freezes the page indicator for the scroll window.
func (n *Controller) BeginProgrammaticScroll() {
	n.mu.Lock()
	n.deadline = n.now().Add(n.window)
	n.mu.Unlock()
	n.tracker.SetProgrammatic(true)
}

// Tick ends the programmatic scroll once its window has passed. It reports
// whether the scroll is still in progress.
func (n *Controller) Tick() bool {
	n.mu.Lock()
	deadline := n.deadline
	expired := !deadline.IsZero() && !n.now().Before(deadline)
	if expired {
		n.deadline = time.Time{}
	}
	n.mu.Unlock()
	if expired {
		n.tracker.SetProgrammatic(false)
		return false
	}
	return !deadline.IsZero()
}

// ScrollWindow returns how long a programmatic scroll lasts.
func (n *Controller) ScrollWindow() time.Duration {
	return n.window
}

// Reset returns to page 1 with no highlight. The nonce keeps counting.
func (n *Controller) Reset() {
	n.mu.Lock()
	n.page = 1
	n.boxes = nil
	n.active = citation.Citation{}
	n.hasCite = false
	n.deadline = time.Time{}
	n.mu.Unlock()
}
