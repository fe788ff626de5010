package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect the prompt templates",
	Long: `Inspect the prompt templates used for reviews and questions.

Templates are built in; set prompts.dir to a directory of YAML or TOML files
to override them by id.`,
}

var promptsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()

		table := ui.Table([]string{"ID", "Version", "Output", "Placeholders", "Description"})
		for _, t := range a.prompts.List() {
			names := make([]string, 0, len(t.Placeholders))
			for _, p := range t.Placeholders {
				n := p.Name
				if !p.Required {
					n += "?"
				}
				names = append(names, n)
			}
			_ = table.Append([]string{t.ID, t.Version, t.OutputKey, strings.Join(names, ", "), t.Description})
		}
		_ = table.Render()
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.prompts.Get(args[0])
		if err != nil {
			return err
		}
		ui.Info("%s (version %s)", t.ID, t.Version)
		if t.Model != "" {
			fmt.Fprintf(ui.Out, "  model:       %s\n", t.Model)
		}
		if t.Temperature != nil {
			fmt.Fprintf(ui.Out, "  temperature: %g\n", *t.Temperature)
		}
		if t.OutputKey != "" {
			fmt.Fprintf(ui.Out, "  output key:  %s\n", t.OutputKey)
		}
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, strings.TrimRight(t.Body, "\n"))
		if verbose && t.OutputSchema != "" {
			fmt.Fprintln(ui.Out)
			fmt.Fprintln(ui.Out, "Output schema:")
			fmt.Fprintln(ui.Out, strings.TrimRight(t.OutputSchema, "\n"))
		}
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}
