package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/transcript"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		snapshotPath string
		outDir       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a saved chat transcript as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := a.documentID
			if id == "" && a.file != "" {
				doc, err := document.Load(a.file)
				if err != nil {
					return err
				}
				id = doc.ID
			}
			if id == "" {
				return fmt.Errorf("pass --document or --file")
			}
			snap, ok, err := transcript.Find(snapshotPath, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no saved transcript for %s in %s", id, snapshotPath)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, transcript.Filename(snap.DocumentTitle, ".md"))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := transcript.WriteMarkdown(f, snap.DocumentTitle, snap.Conversation(), time.Now()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okColor("Exported ")+path)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", transcript.DefaultSnapshotFile, "JSON snapshot file written by the TUI export")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the markdown file")
	return cmd
}
