package highlight

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SnippetOptions bound the progressive shortening of a citation snippet.
type SnippetOptions struct {
	// Budget caps the candidate length in runes.
	Budget int
	// Decrement is how many runes each retry drops from the end.
	Decrement int
	// Floor is the shortest candidate worth trying.
	Floor int
}

// DefaultSnippetOptions matches snippets cut at 100 characters.
func DefaultSnippetOptions() SnippetOptions {
	return SnippetOptions{Budget: 100, Decrement: 5, Floor: 30}
}

func (o SnippetOptions) normalized() SnippetOptions {
	def := DefaultSnippetOptions()
	if o.Budget <= 0 {
		o.Budget = def.Budget
	}
	if o.Decrement <= 0 {
		o.Decrement = def.Decrement
	}
	if o.Floor <= 0 {
		o.Floor = def.Floor
	}
	return o
}

var titleSeparators = []string{" — ", " – "}

const maxTitleRunes = 120

// StripTitle removes a leading "Section Title — " from a snippet.
func StripTitle(snippet string) string {
	snippet = strings.TrimSpace(snippet)
	for _, sep := range titleSeparators {
		idx := strings.Index(snippet, sep)
		if idx <= 0 || utf8.RuneCountInString(snippet[:idx]) > maxTitleRunes {
			continue
		}
		if rest := strings.TrimSpace(snippet[idx+len(sep):]); rest != "" {
			return rest
		}
	}
	return snippet
}

// FindSnippet locates a citation snippet inside a page's text. It tries the
// whole snippet, then ever shorter prefixes down to the floor, and returns the
// byte offset and byte length of the first match in pageText.
func FindSnippet(pageText, snippet string, opts SnippetOptions) (start, length int, ok bool) {
	opts = opts.normalized()
	candidate := []rune(collapseSpace(StripTitle(snippet)))
	if len(candidate) == 0 || pageText == "" {
		return 0, 0, false
	}
	if len(candidate) > opts.Budget {
		candidate = candidate[:opts.Budget]
	}

	folded := FoldSpace(pageText)
	floor := opts.Floor
	if len(candidate) < floor {
		floor = len(candidate)
	}
	for n := len(candidate); n >= floor; n -= opts.Decrement {
		needle := strings.TrimSpace(string(candidate[:n]))
		if needle == "" {
			break
		}
		if s, l, found := folded.Index(needle); found {
			return s, l, true
		}
	}
	return 0, 0, false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Folded is a lowercase copy of a string with a map back to the original byte
// offsets.
type Folded struct {
	Lower string
	// offsets[i] is the byte offset in the original of Lower's byte i. It has
	// one extra entry for the end of the string.
	offsets []int
}

// Fold lowercases s rune by rune.
func Fold(s string) Folded {
	return fold(s, false)
}

// FoldSpace is Fold with every whitespace run, line breaks included, reduced
// to one space. Offsets still point into s.
func FoldSpace(s string) Folded {
	return fold(s, true)
}

func fold(s string, collapse bool) Folded {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	inSpace := false
	for i, r := range s {
		if collapse && unicode.IsSpace(r) {
			if inSpace {
				continue
			}
			inSpace = true
			r = ' '
		} else {
			inSpace = false
		}
		lr := unicode.ToLower(r)
		n := utf8.RuneLen(lr)
		if n < 0 {
			lr, n = utf8.RuneError, utf8.RuneLen(utf8.RuneError)
		}
		for k := 0; k < n; k++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(s))
	return Folded{Lower: b.String(), offsets: offsets}
}

// Original maps a byte offset in Lower to the original string.
func (f Folded) Original(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(f.offsets) {
		return f.offsets[len(f.offsets)-1]
	}
	return f.offsets[i]
}

// Index finds needle case-insensitively, returning the byte span in the
// original string.
func (f Folded) Index(needle string) (start, length int, ok bool) {
	lowered := Fold(needle).Lower
	if lowered == "" {
		return 0, 0, false
	}
	idx := strings.Index(f.Lower, lowered)
	if idx < 0 {
		return 0, 0, false
	}
	s := f.Original(idx)
	e := f.Original(idx + len(lowered))
	return s, e - s, true
}

// IndexAll returns the start of every non-overlapping occurrence of needle in
// Lower. Offsets are in Lower, not the original.
func (f Folded) IndexAll(needle string) []int {
	lowered := Fold(needle).Lower
	if lowered == "" {
		return nil
	}
	var out []int
	from := 0
	for from <= len(f.Lower)-len(lowered) {
		idx := strings.Index(f.Lower[from:], lowered)
		if idx < 0 {
			break
		}
		out = append(out, from+idx)
		from += idx + len(lowered)
	}
	return out
}
