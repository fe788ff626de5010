package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"doc"},
	Short:   "Manage the documents used as question-answering context",
}

var docsAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Add text or markdown documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.openDocs(cmd.Context()); err != nil {
			return err
		}

		for _, path := range args {
			name := filepath.Base(path)
			if dryRun {
				ui.DryRunMsg("Would add %s", name)
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			doc, err := a.rag.Ingest(cmd.Context(), name, string(data))
			if err != nil {
				return fmt.Errorf("add %s: %w", name, err)
			}
			ui.Success("Added %s (%d chunk(s), %d chars)", doc.Filename, doc.ChunkCount, doc.TotalCharacters)
		}
		return nil
	},
}

var docsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.openDocs(cmd.Context()); err != nil {
			return err
		}

		docs, err := a.rag.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			ui.Info("No documents. Add one with: codelens docs add <file>")
			return nil
		}

		table := ui.Table([]string{"Filename", "Chunks", "Chars", "Added"})
		for _, d := range docs {
			_ = table.Append([]string{
				d.Filename,
				fmt.Sprint(d.ChunkCount),
				fmt.Sprint(d.TotalCharacters),
				d.CreatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		_ = table.Render()
		return nil
	},
}

var docsRemoveCmd = &cobra.Command{
	Use:     "rm <filename>...",
	Aliases: []string{"remove"},
	Short:   "Remove documents by filename",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.openDocs(cmd.Context()); err != nil {
			return err
		}

		for _, name := range args {
			if dryRun {
				ui.DryRunMsg("Would remove %s", name)
				continue
			}
			if err := a.rag.DeleteDocument(cmd.Context(), name); err != nil {
				return fmt.Errorf("remove %s: %w", name, err)
			}
			ui.Success("Removed %s", name)
		}
		return nil
	},
}

func init() {
	docsCmd.AddCommand(docsAddCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsRemoveCmd)
	rootCmd.AddCommand(docsCmd)
}
