package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/logging"
)

var (
	errNoSession    = errors.New("a chat session id is required (--session or DOCSCOUT_SESSION_ID)")
	errAnswerFailed = errors.New("the answer failed")

	refColor     = color.New(color.FgCyan, color.Bold).SprintFunc()
	headingColor = color.New(color.Bold).SprintFunc()
	faintColor   = color.New(color.Faint).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
	failColor    = color.New(color.FgRed).SprintFunc()
	matchColor   = color.New(color.FgBlack, color.BgYellow).SprintFunc()
	okColor      = color.New(color.FgGreen).SprintFunc()
)

func newAskCommand(a *app) *cobra.Command {
	var continues int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Stream one answer to stdout and list its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Init(a.cfg.LogFile, a.cfg.Verbose); err != nil {
				return err
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}
			session := a.newSession(client)
			if session == nil {
				return errNoSession
			}
			p := newAnswerPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), session.Store())
			unsubscribe := session.Store().Subscribe(p.update)
			defer unsubscribe()

			err = session.SendMessage(cmd.Context(), strings.Join(args, " "))
			for i := 0; err == nil && i < continues; i++ {
				last, ok := session.Store().Last()
				if !ok || !last.CanContinue {
					break
				}
				err = session.Continue(cmd.Context())
			}
			p.update()
			return p.finish(err, continues)
		},
	}
	cmd.Flags().IntVar(&continues, "continue", 0, "resume a cut-short answer up to this many times")
	return cmd
}

// answerPrinter writes the growing answer as the store changes.
type answerPrinter struct {
	out, errOut io.Writer
	store       *conversation.Store

	mu      sync.Mutex
	id      string
	printed int
}

func newAnswerPrinter(out, errOut io.Writer, store *conversation.Store) *answerPrinter {
	return &answerPrinter{out: out, errOut: errOut, store: store}
}

func (p *answerPrinter) update() {
	last, ok := p.store.Last()
	if !ok || last.Role != conversation.RoleAssistant || last.IsError {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if last.ID != p.id {
		p.id = last.ID
		p.printed = 0
	}
	runes := []rune(last.Text)
	if len(runes) > p.printed {
		fmt.Fprint(p.out, string(runes[p.printed:]))
		p.printed = len(runes)
	}
}

func (p *answerPrinter) finish(err error, continues int) error {
	last, ok := p.store.Last()
	if !ok {
		return err
	}
	if last.IsError {
		fmt.Fprintln(p.errOut, failColor(last.Text))
		if err == nil {
			err = errAnswerFailed
		}
		return err
	}
	fmt.Fprintln(p.out)
	if sources := citation.Unique(citation.Renumber(last.Citations)); len(sources) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, headingColor("Sources"))
		for _, c := range sources {
			fmt.Fprintf(p.out, "%s p.%d %s\n", refColor(fmt.Sprintf("[%d]", c.RefIndex)), c.Page, faintColor(oneLine(c.TextSnippet, 100)))
		}
	}
	if last.CanContinue {
		fmt.Fprintln(p.errOut, warnColor(fmt.Sprintf("Answer cut short. Rerun with --continue %d to resume.", continues+1)))
	}
	return err
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runes := []rune(s); limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "…"
	}
	return s
}
