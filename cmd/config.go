package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/codelens/internal/config"
	"github.com/joescharf/codelens/internal/llm"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "codelens"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage codelens configuration.

Running bare 'codelens config' is the same as 'codelens config show'.
Every key can also be set through CODELENS_<SECTION>_<KEY>; the API key,
model, database URL and JWT secret additionally accept their conventional
names (ANTHROPIC_API_KEY, MODEL, DATABASE_URL, JWT_SECRET_KEY).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
// Secrets are left commented out so they are read from the environment.
const configTemplate = `# codelens configuration
# See: codelens config show (for effective values and sources)

# State/data directory (default: ~/.config/codelens)
# state_dir: {{ .StateDir }}

server:
  host: "{{ .Server.Host }}"
  port: {{ .Server.Port }}
  # Deadline for a whole request, including every model call
  request_timeout: {{ .Server.RequestTimeout }}

llm:
  # anthropic or gemini
  provider: "{{ .LLM.Provider }}"
  model: "{{ .LLM.Model }}"
  # api_key: read from ANTHROPIC_API_KEY / GEMINI_API_KEY / CODELENS_LLM_API_KEY
  timeout: {{ .LLM.Timeout }}
  max_retries: {{ .LLM.MaxRetries }}

database:
  # postgres://... or a SQLite path; also DATABASE_URL
  # url: "sqlite://{{ .StateDir }}/codelens.db"

auth:
  # jwt_secret: read from JWT_SECRET_KEY / CODELENS_AUTH_JWT_SECRET
  access_ttl: {{ .Auth.AccessTTL }}
  refresh_ttl: {{ .Auth.RefreshTTL }}

documents:
  db_path: "{{ .Documents.DBPath }}"

# Directory of YAML/TOML templates overriding the built-in prompts
prompts:
  dir: "{{ .Prompts.Dir }}"

review:
  # Findings at or above this severity set requires_human_review
  human_review_threshold: "{{ .Review.HumanReviewThreshold }}"
  explanations: {{ .Review.Explanations }}

rag:
  top_k: {{ .RAG.TopK }}
  chunk_size: {{ .RAG.ChunkSize }}
  chunk_overlap: {{ .RAG.ChunkOverlap }}

log:
  # debug, info, warn or error
  level: "{{ .Log.Level }}"
  # text or json
  format: "{{ .Log.Format }}"
  dir: "{{ .Log.Dir }}"
`

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data, err := loadConfig()
	if err != nil {
		return err
	}
	if data.LLM.Model == "" {
		data.LLM.Model = llm.DefaultModel
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys are shown by config show, in display order.
var configKeys = []string{
	"state_dir",
	"server.host",
	"server.port",
	"server.request_timeout",
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.timeout",
	"database.url",
	"auth.jwt_secret",
	"auth.access_ttl",
	"documents.db_path",
	"prompts.dir",
	"review.human_review_threshold",
	"review.explanations",
	"rag.top_k",
	"log.level",
	"log.format",
	"log.dir",
}

// secretKeys are masked by config show.
var secretKeys = map[string]bool{
	"llm.api_key":     true,
	"auth.jwt_secret": true,
	"database.url":    true,
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, key := range configKeys {
		val := fmt.Sprint(viper.Get(key))
		if key == "llm.api_key" {
			val = cfg.LLM.APIKey
		}
		if secretKeys[key] {
			val = maskSecret(key, val)
		}
		source := detectSource(key, config.EnvVars(key), fileValues)
		fmt.Fprintf(ui.Out, "  %-30s %v  %s\n", key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// maskSecret hides all but the last four characters of a secret. Database
// URLs keep their scheme and host but lose the password.
func maskSecret(key, val string) string {
	if val == "" || val == "<nil>" {
		return "(unset)"
	}
	if key == "database.url" {
		if at := strings.LastIndex(val, "@"); at >= 0 {
			if scheme := strings.Index(val, "://"); scheme >= 0 && scheme < at {
				return val[:scheme+3] + "****" + val[at:]
			}
		}
		return val
	}
	if len(val) <= 4 {
		return "****"
	}
	return "****" + val[len(val)-4:]
}

// detectSource determines where a config value is coming from. The first
// set variable among envVars wins.
func detectSource(key string, envVars []string, fileValues map[string]bool) string {
	for _, envVar := range envVars {
		if v, ok := os.LookupEnv(envVar); ok && v != "" {
			return fmt.Sprintf("(env: %s)", envVar)
		}
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'codelens config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
