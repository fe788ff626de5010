package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/codelens/internal/models"
)

var (
	reviewLanguage string
	reviewContext  string
	reviewJSON     bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <file>",
	Short: "Review a source file",
	Long: `Review a source file across all six aspects and print the findings.

The language is inferred from the file extension unless --language is given.
Use "-" to read the code from stdin (requires --language).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd, args[0])
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewLanguage, "language", "l", "", "Language tag ("+strings.Join(models.LanguageCodes(), ", ")+")")
	reviewCmd.Flags().StringVar(&reviewContext, "context", "", "Notes about what the code is for")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print the review as JSON")
	rootCmd.AddCommand(reviewCmd)
}

// readSource loads path, or stdin for "-".
func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolveLanguage prefers the explicit flag and falls back to the extension.
func resolveLanguage(path, flag string) (lang, ext string, err error) {
	ext = strings.TrimPrefix(filepath.Ext(path), ".")
	if flag != "" {
		return flag, ext, nil
	}
	l, ok := models.LanguageForExtension(ext)
	if !ok {
		return "", ext, fmt.Errorf("cannot infer language from %q; pass --language (%s)", filepath.Base(path), strings.Join(models.LanguageCodes(), ", "))
	}
	return l.Code, ext, nil
}

func reviewRun(cmd *cobra.Command, path string) error {
	lang, ext, err := resolveLanguage(path, reviewLanguage)
	if err != nil {
		return err
	}
	code, err := readSource(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

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

	req, err := a.reviewer.Validate(models.AnalysisRequest{Code: code, Language: lang, FileType: ext, Context: reviewContext})
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would review %s (%s, %d chars) with %s", path, req.Language, len([]rune(req.Code)), a.client.Model())
		return nil
	}

	ui.VerboseLog("Reviewing %s as %s with %s", path, req.Language, a.client.Model())
	result, err := a.reviewer.Review(cmd.Context(), req)
	if err != nil {
		return err
	}

	if reviewJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	ui.Review(result)
	return nil
}
