// Package cli wires configuration, the backend client and the document
// sources into the docscout commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csheth/docscout/internal/config"
	"github.com/csheth/docscout/internal/logging"
	"github.com/csheth/docscout/internal/tui"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"api-base":      "api_base",
	"session":       "session_id",
	"locale":        "locale",
	"mode":          "mode",
	"log-file":      "log_file",
	"verbose":       "verbose",
	"no-alt-screen": "no_alt_screen",
}

// app is the state shared by every command once flags are parsed.
type app struct {
	configFile string
	documentID string
	file       string

	cfg config.Config
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docscout",
		Short: "docscout: chat with a document and follow every citation to its page",
		Long: `docscout opens a document next to a chat. Answers stream in with numbered
citations; selecting one scrolls the document to the cited passage.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/docscout/config.toml)")
	flags.StringVarP(&a.documentID, "document", "d", "", "backend document id")
	flags.StringVarP(&a.file, "file", "f", "", "local PDF or text file to display")
	flags.String("api-base", "", "backend base URL")
	flags.String("session", "", "chat session id")
	flags.String("locale", "", "answer locale")
	flags.String("mode", "", "answer mode")
	flags.String("log-file", "", "log file path")
	flags.BoolP("verbose", "v", false, "verbose logging")
	flags.Bool("no-alt-screen", false, "disable the alternate screen buffer")

	root.AddCommand(newAskCommand(a), newSearchCommand(a), newExportCommand(a))
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	v := viper.New()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}
	cfg, err := config.Load(v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) runTUI(ctx context.Context) error {
	if a.documentID == "" && a.file == "" {
		return errors.New("pass --document or --file")
	}
	if err := logging.InitTUI(a.cfg.LogPath()); err != nil {
		return err
	}
	logging.SetVerbose(a.cfg.Verbose)

	store := a.openTextStore()
	if store != nil {
		defer store.Close()
	}
	src, err := a.newSource(store)
	if err != nil {
		return err
	}
	session := a.newSession(src.client)

	model := tui.New(tui.Config{
		Session:        session,
		SessionID:      a.cfg.SessionID,
		Load:           src.Load,
		WatchPath:      a.file,
		TextStore:      store,
		Matcher:        a.cfg.Matcher(),
		Snippet:        a.cfg.Snippet(),
		Viewer:         a.cfg.Viewer(),
		SearchDebounce: a.cfg.SearchDebounce,
		ScrollWindow:   a.cfg.ProgrammaticScroll,
	})
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithMouseCellMotion()}
	if !a.cfg.NoAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	_, err = tea.NewProgram(model, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
