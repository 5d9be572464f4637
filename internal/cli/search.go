package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/highlight"
	"github.com/csheth/docscout/internal/logging"
	"github.com/csheth/docscout/internal/search"
)

const excerptRadius = 40

func newSearchCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List the pages of a document that contain a phrase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Init(a.cfg.LogFile, a.cfg.Verbose); err != nil {
				return err
			}
			store := a.openTextStore()
			if store != nil {
				defer store.Close()
			}
			src, err := a.newSource(store)
			if err != nil {
				return err
			}
			doc, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}
			if store != nil && a.file == "" {
				if err := store.Save(cmd.Context(), doc); err != nil {
					logging.Warn("text store save failed: %v", err)
				}
			}

			index := search.NewIndex()
			index.Complete(index.BeginLoad(doc.ID), doc.PageTexts())
			query := strings.Join(args, " ")
			printMatches(cmd.OutOrStdout(), doc, query, index.Offsets(query), limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum matches to print (0 for all)")
	return cmd
}

func printMatches(w io.Writer, doc *document.Document, query string, matches []search.Match, limit int) {
	if len(matches) == 0 {
		fmt.Fprintf(w, "No matches for %q in %s.\n", query, doc.Title)
		return
	}
	fmt.Fprintf(w, "%s: %d matches for %q\n", headingColor(doc.Title), len(matches), query)
	ends := map[int]map[int]int{}
	for i, m := range matches {
		if limit > 0 && i == limit {
			fmt.Fprintln(w, faintColor(fmt.Sprintf("… %d more", len(matches)-limit)))
			return
		}
		page, _ := doc.Page(m.Page)
		if ends[m.Page] == nil {
			ends[m.Page] = map[int]int{}
			for _, s := range highlight.SearchSpans(page.Text, query, -1) {
				ends[m.Page][s.Start] = s.End
			}
		}
		end, ok := ends[m.Page][m.Index]
		if !ok {
			end = m.Index + len(query)
		}
		fmt.Fprintf(w, "%s %s\n", refColor(fmt.Sprintf("p.%-4d", m.Page)), excerpt(page.Text, m.Index, end))
	}
}

// excerpt shows text[start:end] with some context on each side, on one line.
func excerpt(text string, start, end int) string {
	if end > len(text) {
		end = len(text)
	}
	from := start - excerptRadius
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + excerptRadius
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	var b strings.Builder
	if from > 0 {
		b.WriteString("…")
	}
	b.WriteString(flatten(text[from:start]))
	b.WriteString(matchColor(flatten(text[start:end])))
	b.WriteString(flatten(text[end:to]))
	if to < len(text) {
		b.WriteString("…")
	}
	return b.String()
}

// flatten replaces line breaks and tabs so an excerpt stays on one line.
func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || r == '\f' {
			return ' '
		}
		return r
	}, s)
}
