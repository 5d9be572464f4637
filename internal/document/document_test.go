package document

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/docscout/internal/api"
)

func TestBuildPageGroupsGlyphsIntoWords(t *testing.T) {
	glyphs := []pdf.Text{
		{X: 72, Y: 700, W: 6, FontSize: 12, S: "H"},
		{X: 78, Y: 700, W: 6, FontSize: 12, S: "i"},
		{X: 90, Y: 700, W: 6, FontSize: 12, S: "y"},
		{X: 96, Y: 700, W: 6, FontSize: 12, S: "o"},
		{X: 72, Y: 680, W: 6, FontSize: 12, S: "Z"},
	}
	page := buildPage(1, 612, 792, glyphs)

	assert.Equal(t, "Hi yo\nZ", page.Text)
	require.Len(t, page.Fragments, 3)
	assert.Equal(t, "Hi", page.Fragments[0].Text)
	assert.Equal(t, 0, page.Fragments[0].Start)
	assert.Equal(t, 2, page.Fragments[0].End)
	assert.InDelta(t, 72, page.Fragments[0].X, 1e-9)
	assert.InDelta(t, 12, page.Fragments[0].W, 1e-9)
	assert.Equal(t, "yo", page.Fragments[1].Text)
	assert.Equal(t, 3, page.Fragments[1].Start)
	assert.Equal(t, "Z", page.Fragments[2].Text)
	assert.InDelta(t, 680, page.Fragments[2].Y, 1e-9)
}

func TestBuildPageExplicitSpaces(t *testing.T) {
	glyphs := []pdf.Text{
		{X: 10, Y: 100, W: 5, FontSize: 10, S: "a"},
		{X: 15, Y: 100, W: 3, FontSize: 10, S: " "},
		{X: 18, Y: 100, W: 5, FontSize: 10, S: "b"},
	}
	page := buildPage(1, 100, 200, glyphs)
	assert.Equal(t, "a b", page.Text)
	require.Len(t, page.Fragments, 2)
	assert.Equal(t, 1, page.FragmentAt(2))
	assert.Equal(t, 0, page.FragmentAt(0))
	assert.Equal(t, -1, page.FragmentAt(1))
}

func TestFallbackTextLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	assert.Equal(t, "plain words", fallbackText(1, func() (string, error) { return "plain words", nil }))
	assert.Empty(t, buf.String())

	assert.Empty(t, fallbackText(2, func() (string, error) { return "", errors.New("bad stream") }))
	assert.Contains(t, buf.String(), "page 2: plain text unavailable: bad stream")

	assert.Empty(t, fallbackText(3, func() (string, error) { panic("broken font") }))
	assert.Contains(t, buf.String(), "page 3: plain text unavailable: broken font")
}

func TestParseTextFormFeeds(t *testing.T) {
	doc, err := ParseText("first page\n\fsecond page\f\f")
	require.NoError(t, err)
	require.Equal(t, 2, doc.PageCount())
	assert.Equal(t, "first page", doc.Pages[0].Text)
	assert.Equal(t, 2, doc.Pages[1].Number)
	assert.Equal(t, KindText, doc.Kind)
}

func TestParseTextLineChunks(t *testing.T) {
	lines := make([]string, LinesPerPage*2+5)
	for i := range lines {
		lines[i] = "line"
	}
	doc, err := ParseText(strings.Join(lines, "\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.PageCount())
}

func TestParseTextEmpty(t *testing.T) {
	_, err := ParseText("  \n\t")
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestLoadTextUsesFirstLineAsTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("\n# Quarterly report\nbody"), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "# Quarterly report", doc.Title)
	assert.Equal(t, "file:"+path, doc.ID)
	assert.Equal(t, []string{"# Quarterly report\nbody"}, doc.PageTexts())
}

func TestFromRemoteAlignsPages(t *testing.T) {
	info := api.DocumentInfo{
		ID:        "doc-1",
		Filename:  "report.pdf",
		PageCount: 3,
		Pages:     []api.PageInfo{{Number: 2, Width: 842, Height: 595}},
	}
	texts := []api.PageText{{Number: 3, Text: "third"}, {Number: 1, Text: "first"}}

	doc, err := FromRemote(info, texts)
	require.NoError(t, err)
	require.Equal(t, 3, doc.PageCount())
	assert.Equal(t, []string{"first", "", "third"}, doc.PageTexts())
	assert.Equal(t, "report.pdf", doc.Title)

	sizes := doc.Sizes()
	assert.InDelta(t, 595.0/842.0, sizes[1].Aspect(), 1e-9)
	assert.InDelta(t, letterHeight/letterWidth, sizes[0].Aspect(), 1e-9)
}

func TestFromRemoteEmpty(t *testing.T) {
	_, err := FromRemote(api.DocumentInfo{ID: "x"}, nil)
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestAttachLayout(t *testing.T) {
	doc, err := FromRemote(api.DocumentInfo{ID: "d", PageCount: 1}, []api.PageText{{Number: 1, Text: "plain"}})
	require.NoError(t, err)

	layout := &Document{Pages: []Page{buildPage(1, 612, 792, []pdf.Text{{X: 1, Y: 1, W: 4, FontSize: 10, S: "word"}})}}
	assert.True(t, doc.AttachLayout(layout))
	assert.Equal(t, KindPaginated, doc.Kind)
	assert.Equal(t, "word", doc.Pages[0].Text)

	other, _ := FromRemote(api.DocumentInfo{ID: "d", PageCount: 2}, nil)
	assert.False(t, other.AttachLayout(layout))
	assert.Equal(t, KindText, other.Kind)
}

func TestDocumentPageBounds(t *testing.T) {
	doc, err := ParseText("only")
	require.NoError(t, err)
	_, ok := doc.Page(0)
	assert.False(t, ok)
	p, ok := doc.Page(1)
	assert.True(t, ok)
	assert.Equal(t, "only", p.Text)

	var nilDoc *Document
	assert.Equal(t, 0, nilDoc.PageCount())
}
