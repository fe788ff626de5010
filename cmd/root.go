package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codelens/internal/config"
	"github.com/joescharf/codelens/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "codelens",
	Short: "AI code review and documentation Q&A service",
	Long: `codelens reviews source code with a language model across six aspects
(syntax, security, performance, style, best practices and comment quality)
and answers programming questions grounded in uploaded documents.

Run 'codelens serve' for the HTTP API, 'codelens review <file>' for a local
review, or 'codelens mcp' to expose the same tools over MCP stdio.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/codelens/config.yaml)")
}

func initConfig() {
	v := viper.GetViper()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	defaultDir := config.DefaultStateDir()
	config.SetDefaults(v, defaultDir)

	// Read config file if it exists (optional)
	_ = v.ReadInConfig()

	// Paths derived from the state directory follow an overridden state_dir.
	if dir := v.GetString("state_dir"); dir != "" && dir != defaultDir {
		config.SetDefaults(v, dir)
	}
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// loadConfig decodes the effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// stateDir returns the directory holding databases, logs and the PID file.
func stateDir() string {
	if dir := viper.GetString("state_dir"); dir != "" {
		return dir
	}
	return config.DefaultStateDir()
}

// ensureStateDir creates the state directory on first use.
func ensureStateDir() error {
	dir := stateDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", filepath.Clean(dir), err)
	}
	return nil
}
