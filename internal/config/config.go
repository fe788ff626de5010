// Package config decodes and validates the service settings held in viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/codelens/internal/auth"
	"github.com/joescharf/codelens/internal/eventlog"
	"github.com/joescharf/codelens/internal/llm"
	"github.com/joescharf/codelens/internal/logger"
	"github.com/joescharf/codelens/internal/models"
	"github.com/joescharf/codelens/internal/rag"
	"github.com/joescharf/codelens/internal/review"
)

// EnvPrefix is prepended to every automatically bound environment variable.
const EnvPrefix = "CODELENS"

// Config is the full service configuration.
type Config struct {
	StateDir  string          `mapstructure:"state_dir"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Review    ReviewConfig    `mapstructure:"review"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

type DatabaseConfig struct {
	// URL is a postgres:// connection string or a SQLite path (optionally sqlite://).
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type DocumentsConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type PromptsConfig struct {
	// Dir overrides the built-in templates; empty means built-ins only.
	Dir string `mapstructure:"dir"`
}

type ReviewConfig struct {
	MaxCodeLength        int    `mapstructure:"max_code_length"`
	Concurrency          int    `mapstructure:"concurrency"`
	Explanations         bool   `mapstructure:"explanations"`
	HumanReviewThreshold string `mapstructure:"human_review_threshold"`
}

type RAGConfig struct {
	TopK         int `mapstructure:"top_k"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Dir       string `mapstructure:"dir"`
	MaxRecent int    `mapstructure:"max_recent"`
}

// DefaultStateDir returns ~/.config/codelens.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codelens"
	}
	return filepath.Join(home, ".config", "codelens")
}

// SetDefaults registers defaults and environment bindings on v. stateDir is
// the directory holding the databases, logs and PID file.
func SetDefaults(v *viper.Viper, stateDir string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("state_dir", stateDir)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout", "180s")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("llm.provider", llm.ProviderAnthropic)
	v.SetDefault("llm.api_key", "")
	// No default model: serve refuses to start until one is chosen.
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.1)

	// The user store falls back to SQLite under the state directory.
	v.SetDefault("database.url", "sqlite://"+filepath.Join(stateDir, "codelens.db"))

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", auth.DefaultAccessTTL.String())
	v.SetDefault("auth.refresh_ttl", auth.DefaultRefreshTTL.String())

	v.SetDefault("documents.db_path", filepath.Join(stateDir, "documents.db"))
	v.SetDefault("prompts.dir", "")

	v.SetDefault("review.max_code_length", review.MaxCodeLength)
	v.SetDefault("review.concurrency", len(models.Aspects))
	v.SetDefault("review.explanations", true)
	v.SetDefault("review.human_review_threshold", string(models.SeverityMedium))

	v.SetDefault("rag.top_k", rag.MaxTopK)
	v.SetDefault("rag.chunk_size", rag.DefaultChunkSize)
	v.SetDefault("rag.chunk_overlap", rag.DefaultChunkOverlap)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.dir", filepath.Join(stateDir, "logs"))
	v.SetDefault("log.max_recent", eventlog.DefaultMaxRecent)

	// Conventional names are accepted alongside the prefixed ones.
	_ = v.BindEnv("llm.model", EnvPrefix+"_LLM_MODEL", "MODEL")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET_KEY")
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY")
}

// EnvVars lists the environment variables consulted for key, in precedence order.
func EnvVars(key string) []string {
	prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	switch key {
	case "llm.api_key":
		return []string{prefixed, "ANTHROPIC_API_KEY", "GEMINI_API_KEY"}
	case "llm.model":
		return []string{prefixed, "MODEL"}
	case "database.url":
		return []string{prefixed, "DATABASE_URL"}
	case "auth.jwt_secret":
		return []string{prefixed, "JWT_SECRET_KEY"}
	}
	return []string{prefixed}
}

// Load decodes v into a Config. The provider key falls back to the
// provider's conventional variable (ANTHROPIC_API_KEY or GEMINI_API_KEY).
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case llm.ProviderGemini:
			c.LLM.APIKey = v.GetString("gemini_api_key")
		default:
			c.LLM.APIKey = v.GetString("anthropic_api_key")
		}
	}
	return &c, nil
}

// Validate reports every missing or malformed setting the server needs.
func (c *Config) Validate() error {
	errs := c.llmErrors()
	if c.Database.URL == "" {
		errs = append(errs, fmt.Errorf("database url is not set (%s)", strings.Join(EnvVars("database.url"), ", ")))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("jwt secret is not set (%s)", strings.Join(EnvVars("auth.jwt_secret"), ", ")))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != logger.FormatText && f != logger.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format %q is not supported (want text or json)", c.Log.Format))
	}
	if s := models.Severity(strings.ToLower(c.Review.HumanReviewThreshold)); c.Review.HumanReviewThreshold != "" && !s.Valid() {
		errs = append(errs, fmt.Errorf("review.human_review_threshold %q is not a severity", c.Review.HumanReviewThreshold))
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize && c.RAG.ChunkSize > 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize))
	}
	return errors.Join(errs...)
}

// ValidateLLM checks only the provider settings, for commands that call the
// model without serving.
func (c *Config) ValidateLLM() error {
	return errors.Join(c.llmErrors()...)
}

func (c *Config) llmErrors() []error {
	var errs []error
	switch c.LLM.Provider {
	case llm.ProviderAnthropic, llm.ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported (want %s or %s)", c.LLM.Provider, llm.ProviderAnthropic, llm.ProviderGemini))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm api key is not set (%s)", strings.Join(EnvVars("llm.api_key"), ", ")))
	}
	if c.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm model is not set (%s)", strings.Join(EnvVars("llm.model"), ", ")))
	}
	return errs
}

// LLMOptions returns the client options.
func (c *Config) LLMOptions() llm.Options {
	return llm.Options{
		Model:       c.LLM.Model,
		Timeout:     c.LLM.Timeout,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
	}
}

// ReviewConfig returns the orchestrator settings.
func (c *Config) ReviewConfig() review.Config {
	return review.Config{
		Model:                c.LLM.Model,
		MaxCodeLength:        c.Review.MaxCodeLength,
		Concurrency:          c.Review.Concurrency,
		Explanations:         c.Review.Explanations,
		HumanReviewThreshold: models.ParseSeverity(c.Review.HumanReviewThreshold),
	}
}

// RAGConfig returns the retrieval settings.
func (c *Config) RAGConfig() rag.Config {
	return rag.Config{
		TopK:         c.RAG.TopK,
		ChunkSize:    c.RAG.ChunkSize,
		ChunkOverlap: c.RAG.ChunkOverlap,
		Model:        c.LLM.Model,
	}
}

// AuthConfig returns the token settings.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		Secret:     c.Auth.JWTSecret,
		AccessTTL:  c.Auth.AccessTTL,
		RefreshTTL: c.Auth.RefreshTTL,
	}
}
