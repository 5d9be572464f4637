package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/highlight"
	"github.com/csheth/docscout/internal/navigation"
	"github.com/csheth/docscout/internal/viewer"
)

// highlightState is what the document pane highlights on this layout pass.
type highlightState struct {
	// active is the selected citation, with boxes already limited to its
	// page.
	active    citation.Citation
	hasActive bool
	boxes     []citation.NormalizedBox

	query      string
	searchPage int
	searchRank int
}

// docRenderer lays out pages in terminal rows. Pages outside the tracker
// window render as blank placeholders of their estimated height, so the
// scroll geometry of a long document is stable without laying it all out.
type docRenderer struct {
	tracker *viewer.Tracker
	matcher highlight.Matcher
	snippet highlight.SnippetOptions
	width   int
}

type renderedPage struct {
	lines   []string
	anchors map[int]viewer.Geometry
}

func (r *docRenderer) textWidth() int {
	w := r.width - docGutterWidth
	if w < minPaneWidth-docGutterWidth {
		w = minPaneWidth - docGutterWidth
	}
	return w
}

// Render lays out every page and returns the pane content. Anchors of
// mounted pages are registered with the tracker as a side effect.
func (r *docRenderer) Render(doc *document.Document, hs highlightState) string {
	if doc == nil || doc.PageCount() == 0 {
		return ""
	}
	var out []string
	for _, page := range doc.Pages {
		r.tracker.ClearAnchors(page.Number)
		if !r.tracker.Mounted(page.Number) {
			out = append(out, r.placeholder(page.Number, doc.PageCount())...)
			continue
		}
		rp := r.renderPage(doc, page, hs)
		r.tracker.SetRenderedHeight(page.Number, len(rp.lines))
		for idx, g := range rp.anchors {
			r.tracker.RegisterAnchor(page.Number, idx, g)
		}
		out = append(out, rp.lines...)
	}
	return strings.Join(out, "\n")
}

func (r *docRenderer) header(page, total int) string {
	label := fmt.Sprintf("── page %d/%d ", page, total)
	if pad := r.width - runewidth.StringWidth(label); pad > 0 {
		label += strings.Repeat("─", pad)
	}
	return pageHeaderStyle.Render(label)
}

func (r *docRenderer) placeholder(page, total int) []string {
	h := r.tracker.Height(page)
	if h < 1 {
		h = 1
	}
	lines := make([]string, h)
	lines[0] = r.header(page, total)
	if h > 2 {
		lines[h/2] = placeholderStyle.Render(fmt.Sprintf("  · page %d ·", page))
	}
	return lines
}

func (r *docRenderer) renderPage(doc *document.Document, page document.Page, hs highlightState) renderedPage {
	if doc.Kind == document.KindPaginated && len(page.Fragments) > 0 {
		return r.renderPositioned(doc, page, hs)
	}
	return r.renderFlowed(doc, page, hs)
}

// renderFlowed wraps the page text and highlights by character span: the
// citation snippet located in the text, and search hits.
func (r *docRenderer) renderFlowed(doc *document.Document, page document.Page, hs highlightState) renderedPage {
	rp := renderedPage{anchors: map[int]viewer.Geometry{}}
	width := r.textWidth()

	var cited []highlight.Span
	if hs.hasActive && hs.active.Page == page.Number {
		if start, length, ok := highlight.FindSnippet(page.Text, hs.active.TextSnippet, r.snippet); ok {
			cited = append(cited, highlight.Span{Start: start, End: start + length, Kind: highlight.SpanCitation})
		}
	}
	active := -1
	if hs.searchPage == page.Number {
		active = hs.searchRank
	}
	spans := highlight.MergeSpans(cited, highlight.SearchSpans(page.Text, hs.query, active))

	body := wrapText(applySpans(page.Text, spans), width)
	lines := append([]string{r.header(page.Number, doc.PageCount())}, strings.Split(body, "\n")...)

	for _, s := range spans {
		var idx int
		switch s.Kind {
		case highlight.SpanCitation:
			idx = hs.active.RefIndex
		case highlight.SpanSearchActive:
			idx = navigation.SearchAnchor
		default:
			continue
		}
		if _, seen := rp.anchors[idx]; seen {
			continue
		}
		top := countLines(wrapText(page.Text[:s.Start], width)) - 1
		end := countLines(wrapText(page.Text[:s.End], width)) - 1
		rp.anchors[idx] = viewer.Geometry{Top: 1 + top, Height: end - top + 1}
	}
	rp.lines = r.withGutter(lines, nil)
	return rp
}

type placedFragment struct {
	col  int
	text string
	kind highlight.SpanKind
}

// renderPositioned places every fragment on a character grid sized to the
// page's placeholder height, so mounting a page does not move the pages
// below it. Citation boxes mark overlapping fragments and draw a bar in the
// gutter even where no fragment overlaps.
func (r *docRenderer) renderPositioned(doc *document.Document, page document.Page, hs highlightState) renderedPage {
	rp := renderedPage{anchors: map[int]viewer.Geometry{}}
	width := r.textWidth()
	rows := r.tracker.PlaceholderHeight(page.Number) - 1
	if rows < 1 {
		rows = 1
	}

	frags := make([]highlight.Fragment, len(page.Fragments))
	for i, f := range page.Fragments {
		frags[i] = f.Fragment
	}
	kinds := make([]highlight.SpanKind, len(frags))

	var boxes []citation.NormalizedBox
	if hs.hasActive {
		boxes = highlight.BoxesForPage(hs.boxes, page.Number)
	}
	for i, marked := range r.matcher.Match(frags, page.Width, page.Height, boxes) {
		if marked {
			kinds[i] = highlight.SpanCitation
		}
	}
	active := -1
	if hs.searchPage == page.Number {
		active = hs.searchRank
	}
	searchRow := -1
	for _, s := range highlight.SearchSpans(page.Text, hs.query, active) {
		for i, f := range page.Fragments {
			if f.End <= s.Start || f.Start >= s.End || kinds[i] == highlight.SpanCitation {
				continue
			}
			kinds[i] = s.Kind
			if s.Kind == highlight.SpanSearchActive && searchRow < 0 {
				searchRow = r.rowOf(r.matcher.FragmentRect(f.Fragment, page.Width, page.Height).Y, rows)
			}
		}
	}

	grid := make([][]placedFragment, rows)
	for i, f := range page.Fragments {
		rect := r.matcher.FragmentRect(f.Fragment, page.Width, page.Height)
		row := r.rowOf(rect.Y, rows)
		col := int(rect.X * float64(width))
		grid[row] = append(grid[row], placedFragment{col: col, text: f.Text, kind: kinds[i]})
	}

	lines := make([]string, 0, rows+1)
	lines = append(lines, r.header(page.Number, doc.PageCount()))
	for _, cells := range grid {
		lines = append(lines, layoutRow(cells, width))
	}

	bars := make(map[int]bool)
	for _, rect := range r.matcher.Overlay(boxes, page.Number) {
		top, bottom := r.rowOf(rect.Y, rows), r.rowOf(rect.Bottom(), rows)
		for row := top; row <= bottom; row++ {
			bars[row+1] = true
		}
	}
	if hs.hasActive {
		active := hs.active
		active.BoundingBoxes = hs.boxes
		if rect, ok := r.matcher.Anchor([]citation.Citation{active}, page.Number); ok {
			top, bottom := r.rowOf(rect.Y, rows), r.rowOf(rect.Bottom(), rows)
			rp.anchors[hs.active.RefIndex] = viewer.Geometry{Top: 1 + top, Height: bottom - top + 1}
		}
	}
	if searchRow >= 0 {
		rp.anchors[navigation.SearchAnchor] = viewer.Geometry{Top: 1 + searchRow, Height: 1}
	}
	rp.lines = r.withGutter(lines, bars)
	return rp
}

func (r *docRenderer) rowOf(y float64, rows int) int {
	row := int(y * float64(rows))
	if row < 0 {
		return 0
	}
	if row >= rows {
		return rows - 1
	}
	return row
}

// withGutter prefixes every line but the header with the overlay column.
func (r *docRenderer) withGutter(lines []string, bars map[int]bool) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		switch {
		case i == 0:
			out[i] = line
		case bars[i]:
			out[i] = overlayBarStyle.Render("▌") + " " + line
		default:
			out[i] = strings.Repeat(" ", docGutterWidth) + line
		}
	}
	return out
}

// layoutRow writes fragments left to right at their columns, keeping at
// least one space between neighbours and cutting at width.
func layoutRow(cells []placedFragment, width int) string {
	if len(cells) == 0 {
		return ""
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].col < cells[j].col })
	var b strings.Builder
	cur := 0
	for _, c := range cells {
		col := c.col
		if cur > 0 && col <= cur {
			col = cur + 1
		}
		if col >= width {
			break
		}
		b.WriteString(strings.Repeat(" ", col-cur))
		text := runewidth.Truncate(c.text, width-col, "")
		if c.kind != 0 {
			b.WriteString(spanStyle(c.kind).Render(text))
		} else {
			b.WriteString(text)
		}
		cur = col + runewidth.StringWidth(text)
	}
	return b.String()
}

// applySpans styles the byte ranges of text. Spans must be sorted and
// disjoint.
func applySpans(text string, spans []highlight.Span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.Start < pos || s.End > len(text) {
			continue
		}
		b.WriteString(text[pos:s.Start])
		b.WriteString(styleLines(spanStyle(s.Kind), text[s.Start:s.End]))
		pos = s.End
	}
	b.WriteString(text[pos:])
	return b.String()
}

// styleLines renders each line separately so styles never span a newline.
func styleLines(style lipgloss.Style, s string) string {
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		if p != "" {
			parts[i] = style.Render(p)
		}
	}
	return strings.Join(parts, "\n")
}

func wrapText(s string, width int) string {
	return wrap.String(wordwrap.String(s, width), width)
}

func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}
