package highlight

import "sort"

// SpanKind selects the style of a highlighted character range.
type SpanKind int

const (
	SpanCitation SpanKind = iota + 1
	SpanSearch
	SpanSearchActive
)

// Span is a half-open byte range [Start, End) of page text.
type Span struct {
	Start, End int
	Kind       SpanKind
}

// MergeSpans layers search spans under citation spans. Where a search span
// overlaps a citation span the overlapping part is dropped, so the citation
// style wins. The result is sorted and non-overlapping.
func MergeSpans(citations, searches []Span) []Span {
	cited := normalize(citations)
	out := make([]Span, 0, len(cited)+len(searches))
	out = append(out, cited...)
	for _, s := range searches {
		if s.End <= s.Start {
			continue
		}
		out = append(out, subtract(s, cited)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// normalize sorts spans and merges overlapping ones of the same kind.
func normalize(spans []Span) []Span {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End > s.Start {
			valid = append(valid, s)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Start < valid[j].Start
	})
	var out []Span
	for _, s := range valid {
		if n := len(out); n > 0 && s.Start <= out[n-1].End {
			if s.End > out[n-1].End {
				out[n-1].End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// subtract removes the sorted, disjoint covers from s.
func subtract(s Span, covers []Span) []Span {
	var out []Span
	cur := s.Start
	for _, c := range covers {
		if c.End <= cur || c.Start >= s.End {
			continue
		}
		if c.Start > cur {
			out = append(out, Span{Start: cur, End: c.Start, Kind: s.Kind})
		}
		if c.End > cur {
			cur = c.End
		}
		if cur >= s.End {
			return out
		}
	}
	if cur < s.End {
		out = append(out, Span{Start: cur, End: s.End, Kind: s.Kind})
	}
	return out
}

// SearchSpans returns a span for every case-insensitive occurrence of query
// in text. The occurrence with rank active gets SpanSearchActive; pass -1 for
// none.
func SearchSpans(text, query string, active int) []Span {
	needle := Fold(query).Lower
	if needle == "" || text == "" {
		return nil
	}
	folded := Fold(text)
	offsets := folded.IndexAll(query)
	out := make([]Span, 0, len(offsets))
	for rank, off := range offsets {
		kind := SpanSearch
		if rank == active {
			kind = SpanSearchActive
		}
		out = append(out, Span{
			Start: folded.Original(off),
			End:   folded.Original(off + len(needle)),
			Kind:  kind,
		})
	}
	return out
}
