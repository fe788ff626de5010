package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a programming question using the uploaded documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.cfg.ValidateLLM(); err != nil {
			return err
		}
		if err := a.openLLM(cmd.Context()); err != nil {
			return err
		}
		if err := a.openDocs(cmd.Context()); err != nil {
			return err
		}

		turn, err := a.rag.Answer(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if askJSON {
			enc := json.NewEncoder(ui.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(turn)
		}

		fmt.Fprintln(ui.Out, turn.Answer)
		if turn.ContextUsed {
			seen := map[string]bool{}
			var sources []string
			for _, c := range turn.Context {
				if !seen[c.Source] {
					seen[c.Source] = true
					sources = append(sources, c.Source)
				}
			}
			fmt.Fprintln(ui.Out)
			ui.Info("Sources: %s", strings.Join(sources, ", "))
		}
		ui.VerboseLog("%.1fs, %d chunk(s) retrieved", turn.ProcessingTimeSeconds, turn.DocumentsFound)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full turn as JSON")
	rootCmd.AddCommand(askCmd)
}
