package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LinesPerPage splits plain text without form feeds into pages.
const LinesPerPage = 60

// Load reads a local document, choosing the loader by extension.
func Load(path string) (*Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return LoadPDF(path)
	}
	return LoadText(path)
}

// LoadText reads a plain-text or markdown file. Form feeds separate pages;
// without them the text is cut every LinesPerPage lines.
func LoadText(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := ParseText(string(data))
	if err != nil {
		return nil, err
	}
	doc.ID = "file:" + path
	doc.Source = path
	doc.Title = titleFromText(doc.Pages, filepath.Base(path))
	return doc, nil
}

// ParseText splits text into pages.
func ParseText(text string) (*Document, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoPages
	}

	var chunks []string
	if strings.Contains(text, "\f") {
		chunks = strings.Split(text, "\f")
	} else {
		lines := strings.Split(text, "\n")
		for start := 0; start < len(lines); start += LinesPerPage {
			end := min(start+LinesPerPage, len(lines))
			chunks = append(chunks, strings.Join(lines[start:end], "\n"))
		}
	}

	doc := &Document{Kind: KindText}
	for _, chunk := range chunks {
		chunk = strings.Trim(chunk, "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{
			Number: len(doc.Pages) + 1,
			Width:  letterWidth,
			Height: letterHeight,
			Text:   chunk,
		})
	}
	if len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}
	return doc, nil
}
