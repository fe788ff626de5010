package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/codelens/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client run reviews and document questions directly.
Configure it with:

  {
    "mcpServers": {
      "codelens": { "command": "codelens", "args": ["mcp"] }
    }
  }

Available tools: codelens_review, codelens_supported_languages, codelens_ask,
codelens_list_documents, codelens_add_document`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol, so logs go to stderr.
		a, err := newApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.cfg.ValidateLLM(); err != nil {
			return err
		}
		if err := a.openEvents(); err != nil {
			return err
		}
		if err := a.openLLM(cmd.Context()); err != nil {
			return err
		}
		if err := a.openDocs(cmd.Context()); err != nil {
			a.logger.Warn("document tools disabled", "error", err)
		}

		return mcp.NewServer(a.reviewer, a.rag, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
