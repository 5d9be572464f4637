package document

import (
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDF extracts positioned text from a PDF file.
func LoadPDF(path string) (*Document, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	doc, err := readPDF(reader)
	if err != nil {
		return nil, err
	}
	doc.ID = "file:" + path
	doc.Source = path
	doc.Title = titleFromText(doc.Pages, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return doc, nil
}

// ReadPDF extracts positioned text from PDF bytes.
func ReadPDF(r io.ReaderAt, size int64) (*Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return readPDF(reader)
}

func readPDF(reader *pdf.Reader) (*Document, error) {
	total := reader.NumPage()
	if total == 0 {
		return nil, ErrNoPages
	}
	doc := &Document{Kind: KindPaginated, Pages: make([]Page, 0, total)}
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			doc.Pages = append(doc.Pages, Page{Number: i, Width: letterWidth, Height: letterHeight})
			continue
		}
		w, h := mediaBox(p.V)
		page := Page{Number: i, Width: w, Height: h}
		glyphs, err := pageGlyphs(p)
		if err != nil {
			log.Printf("[document] page %d: positioned text unavailable: %v", i, err)
			page.Text = fallbackText(i, func() (string, error) { return p.GetPlainText(nil) })
		} else {
			page = buildPage(i, w, h, glyphs)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// fallbackText extracts a page's plain text when its glyphs could not be
// placed. A failure leaves the page blank and is logged.
func fallbackText(number int, extract func() (string, error)) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[document] page %d: plain text unavailable: %v", number, rec)
			text = ""
		}
	}()
	text, err := extract()
	if err != nil {
		log.Printf("[document] page %d: plain text unavailable: %v", number, err)
		return ""
	}
	return text
}

// pageGlyphs reads the content stream. The parser panics on some malformed
// streams, so the panic is turned into an error for that page only.
func pageGlyphs(p pdf.Page) (glyphs []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream: %v", r)
		}
	}()
	return p.Content().Text, nil
}

// mediaBox returns the page width and height, following inherited boxes up
// the page tree.
func mediaBox(v pdf.Value) (float64, float64) {
	for node := v; !node.IsNull(); node = node.Key("Parent") {
		box := node.Key("MediaBox")
		if box.Len() != 4 {
			continue
		}
		w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
		h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return letterWidth, letterHeight
}

// buildPage groups glyphs into word fragments and lays the page text out in
// reading order: a new line whenever the baseline moves, a space whenever
// the horizontal gap is wider than a fraction of the font size.
func buildPage(number int, width, height float64, glyphs []pdf.Text) Page {
	page := Page{Number: number, Width: width, Height: height}
	var text strings.Builder
	var cur *Fragment
	var lastY, lastEnd float64
	started := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.End = text.Len()
		cur.Text = text.String()[cur.Start:cur.End]
		page.Fragments = append(page.Fragments, *cur)
		cur = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		newLine := started && math.Abs(g.Y-lastY) > size*0.4
		gap := started && !newLine && g.X-lastEnd > size*0.25
		blank := strings.TrimSpace(g.S) == ""

		switch {
		case newLine:
			flush()
			text.WriteByte('\n')
		case gap || blank:
			flush()
			if gap && !blank {
				text.WriteByte(' ')
			}
		}
		started = true
		lastY = g.Y
		lastEnd = g.X + g.W
		if blank {
			if s := text.String(); s != "" && s[len(s)-1] != ' ' && s[len(s)-1] != '\n' {
				text.WriteByte(' ')
			}
			continue
		}

		if cur == nil {
			cur = &Fragment{Start: text.Len()}
			cur.X, cur.Y, cur.H = g.X, g.Y, size
		}
		if g.X < cur.X {
			cur.W += cur.X - g.X
			cur.X = g.X
		}
		if right := g.X + g.W; right > cur.X+cur.W {
			cur.W = right - cur.X
		}
		text.WriteString(g.S)
	}
	flush()
	page.Text = text.String()
	return page
}
