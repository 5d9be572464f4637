package citation

import (
	"sort"
	"strconv"
	"strings"
)

// Segment is a run of answer text or a citation marker. Exactly one of Text
// and Citation is set.
type Segment struct {
	Text     string
	Citation *Citation
}

// Segments splits text at each citation offset. Answer text never contains
// the markers themselves; offsets count runes and are clamped to the text,
// so a citation that arrives ahead of its text lands at the end.
func Segments(text string, cs []Citation) []Segment {
	runes := []rune(text)
	if len(cs) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{{Text: text}}
	}
	ordered := append([]Citation(nil), cs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	var out []Segment
	cursor := 0
	for i := range ordered {
		at := min(max(ordered[i].Offset, 0), len(runes))
		if at > cursor {
			out = append(out, Segment{Text: string(runes[cursor:at])})
			cursor = at
		}
		out = append(out, Segment{Citation: &ordered[i]})
	}
	if cursor < len(runes) {
		out = append(out, Segment{Text: string(runes[cursor:])})
	}
	return out
}

// Inline returns text with a marker rendered by mark inserted at every
// citation offset.
func Inline(text string, cs []Citation, mark func(Citation) string) string {
	if mark == nil {
		mark = func(c Citation) string { return "[" + strconv.Itoa(c.RefIndex) + "]" }
	}
	var b strings.Builder
	for _, seg := range Segments(text, cs) {
		if seg.Citation != nil {
			b.WriteString(mark(*seg.Citation))
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
