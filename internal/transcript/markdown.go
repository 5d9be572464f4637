// Package transcript exports a conversation as markdown with footnoted
// citations, or as JSON snapshots kept per document.
package transcript

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
)

// AssistantLabel heads assistant turns in the markdown export.
const AssistantLabel = "DocScout"

type footnote struct {
	page    int
	snippet string
}

// WriteMarkdown renders messages as a markdown document. Every citation
// marker becomes its own numbered footnote listed under References.
func WriteMarkdown(w io.Writer, title string, messages []conversation.Message, now time.Time) error {
	if title == "" {
		title = "Document"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s — Chat Export\n\n", title)
	fmt.Fprintf(&b, "*Exported from DocScout on %s*\n\n---\n\n", now.Format("2006-01-02"))

	var notes []footnote
	for _, m := range messages {
		if m.Role == conversation.RoleUser {
			b.WriteString("**You:**\n\n")
			b.WriteString(m.Text)
		} else {
			fmt.Fprintf(&b, "**%s:**\n\n", AssistantLabel)
			b.WriteString(citation.Inline(m.Text, citation.Renumber(m.Citations), func(c citation.Citation) string {
				notes = append(notes, footnote{page: c.Page, snippet: oneLine(c.TextSnippet)})
				return fmt.Sprintf("[^%d]", len(notes))
			}))
		}
		b.WriteString("\n\n---\n\n")
	}

	if len(notes) > 0 {
		b.WriteString("## References\n\n")
		for i, n := range notes {
			fmt.Fprintf(&b, "[^%d]: Page %d", i+1, n.page)
			if n.snippet != "" {
				fmt.Fprintf(&b, " — \"%s\"", n.snippet)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Filename returns a filesystem-safe export name for a document title.
func Filename(title, ext string) string {
	if title == "" {
		title = "chat"
	}
	title = strings.TrimSuffix(title, ".pdf")
	return unsafeName.ReplaceAllString(title, "_") + "_chat_export" + ext
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
