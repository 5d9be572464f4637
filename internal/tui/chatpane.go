package tui

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
)

const (
	answerLabel       = "DocScout"
	renderFailureText = "failed to render message"
	sourcePreview     = 72
)

// citationRef addresses one entry of the Sources list under an answer.
type citationRef struct {
	message  int
	citation citation.Citation
}

// citationRefs lists the unique renumbered citations of every answer in
// display order. It drives [ / ] navigation.
func citationRefs(messages []conversation.Message) []citationRef {
	var refs []citationRef
	for i, m := range messages {
		if m.Role != conversation.RoleAssistant || len(m.Citations) == 0 {
			continue
		}
		for _, c := range citation.Unique(citation.Renumber(m.Citations)) {
			refs = append(refs, citationRef{message: i, citation: c})
		}
	}
	return refs
}

type chatRenderer struct {
	width int
}

// Render lays out the transcript. selected is the index into citationRefs of
// the highlighted source, or -1. A message that fails to render is replaced
// by a notice without affecting the others.
func (r chatRenderer) Render(messages []conversation.Message, streaming bool, selected int, spinner string) string {
	if len(messages) == 0 {
		return helperStyle.Render("Ask a question about the document. Answers cite the pages they come from.")
	}
	refIdx := 0
	blocks := make([]string, 0, len(messages))
	for i, m := range messages {
		last := i == len(messages)-1
		block, n := r.safeMessage(m, streaming && last, selected-refIdx, spinner)
		refIdx += n
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func (r chatRenderer) safeMessage(m conversation.Message, streaming bool, selected int, spinner string) (out string, refs int) {
	if m.Role == conversation.RoleAssistant && len(m.Citations) > 0 {
		refs = len(citation.Unique(m.Citations))
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[chat] render message %s: %v", m.ID, rec)
			out = errorStyle.Render(renderFailureText)
		}
	}()
	return r.message(m, streaming, selected, spinner), refs
}

func (r chatRenderer) message(m conversation.Message, streaming bool, selected int, spinner string) string {
	width := r.width
	if width < minPaneWidth {
		width = minPaneWidth
	}
	if m.Role == conversation.RoleUser {
		return userLabelStyle.Render("You") + "\n" + wrapText(m.Text, width)
	}

	label := answerLabelStyle.Render(answerLabel)
	if streaming {
		label += " " + spinner
	}
	if m.IsError {
		style := errorStyle
		if m.Notice != conversation.NoticeError && m.Notice != conversation.NoticeNone {
			style = noticeStyle
		}
		return label + "\n" + style.Render(wrapText(m.Text, width))
	}

	renumbered := citation.Renumber(m.Citations)
	body := citation.Inline(m.Text, renumbered, func(c citation.Citation) string {
		return "[" + strconv.Itoa(c.RefIndex) + "]"
	})
	if body == "" && streaming {
		body = helperStyle.Render("…")
	}
	parts := []string{label, highlightMarkers(wrapText(body, width))}

	if sources := citation.Unique(renumbered); len(sources) > 0 {
		parts = append(parts, helperStyle.Render("Sources"))
		for i, c := range sources {
			line := fmt.Sprintf("[%d] p.%d %s", c.RefIndex, c.Page, previewText(c.TextSnippet, sourcePreview))
			line = truncateWidth(line, width)
			if i == selected {
				line = currentLineStyle.Render(line)
			} else {
				line = helperStyle.Render(line)
			}
			parts = append(parts, line)
		}
	}
	if m.CanContinue {
		parts = append(parts, noticeStyle.Render("Answer cut short. Press c to continue."))
	}
	return strings.Join(parts, "\n")
}

// highlightMarkers colours [n] markers in rendered text.
func highlightMarkers(s string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(s, '[')
		if open < 0 {
			break
		}
		end := strings.IndexByte(s[open:], ']')
		if end < 0 {
			break
		}
		end += open
		inner := s[open+1 : end]
		if _, err := strconv.Atoi(inner); err != nil || inner == "" {
			b.WriteString(s[:open+1])
			s = s[open+1:]
			continue
		}
		b.WriteString(s[:open])
		b.WriteString(markerStyle.Render(s[open : end+1]))
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String()
}

func previewText(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func truncateWidth(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
