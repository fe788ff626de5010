package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/llm"
	"github.com/joescharf/codelens/internal/models"
)

// clearEnv blanks every variable Load may consult so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CODELENS_LLM_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"CODELENS_LLM_MODEL", "MODEL", "CODELENS_LLM_PROVIDER",
		"CODELENS_DATABASE_URL", "DATABASE_URL",
		"CODELENS_AUTH_JWT_SECRET", "JWT_SECRET_KEY",
		"CODELENS_SERVER_PORT", "CODELENS_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func newViper(t *testing.T) (*viper.Viper, string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	v := viper.New()
	SetDefaults(v, dir)
	return v, dir
}

func TestLoad_Defaults(t *testing.T) {
	v, dir := newViper(t)

	c, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", c.Server.Addr())
	assert.Equal(t, 180*time.Second, c.Server.RequestTimeout)
	assert.Equal(t, llm.ProviderAnthropic, c.LLM.Provider)
	assert.Empty(t, c.LLM.Model)
	assert.Equal(t, "sqlite://"+filepath.Join(dir, "codelens.db"), c.Database.URL)
	assert.Equal(t, filepath.Join(dir, "documents.db"), c.Documents.DBPath)
	assert.True(t, c.Review.Explanations)
	assert.Equal(t, 6, c.RAG.TopK)

	rc := c.ReviewConfig()
	assert.Equal(t, models.SeverityMedium, rc.HumanReviewThreshold)
	assert.Equal(t, 50000, rc.MaxCodeLength)
}

func TestValidate_ReportsMissingSecrets(t *testing.T) {
	v, _ := newViper(t)
	v.Set("database.url", "")

	c, err := Load(v)
	require.NoError(t, err)

	err = c.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "api key")
	assert.Contains(t, msg, "ANTHROPIC_API_KEY")
	assert.Contains(t, msg, "database url")
	assert.Contains(t, msg, "jwt secret")
	assert.Contains(t, msg, "JWT_SECRET_KEY")
}

func TestValidate_MissingModelFails(t *testing.T) {
	v, _ := newViper(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Empty(t, c.LLM.Model)

	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm model is not set")
	assert.Contains(t, err.Error(), "MODEL")
	assert.NotContains(t, err.Error(), "database url")
	assert.Error(t, c.ValidateLLM())

	t.Setenv("MODEL", "claude-sonnet-4-5")
	c, err = Load(v)
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
}

func TestValidateLLM_IgnoresServerSettings(t *testing.T) {
	v, _ := newViper(t)
	v.Set("database.url", "")

	c, err := Load(v)
	require.NoError(t, err)
	err = c.ValidateLLM()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
	assert.NotContains(t, err.Error(), "jwt secret")

	c.LLM.APIKey = "k"
	c.LLM.Model = "m"
	assert.NoError(t, c.ValidateLLM())
}

func TestLoad_ConventionalEnvNames(t *testing.T) {
	v, _ := newViper(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MODEL", "claude-sonnet-4-5")
	t.Setenv("DATABASE_URL", "postgres://u@localhost/codelens")
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", c.LLM.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", c.LLM.Model)
	assert.Equal(t, "postgres://u@localhost/codelens", c.Database.URL)
	assert.Equal(t, "s3cret", c.AuthConfig().Secret)
	assert.NoError(t, c.Validate())
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	v, _ := newViper(t)
	t.Setenv("MODEL", "from-model")
	t.Setenv("CODELENS_LLM_MODEL", "from-prefixed")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-prefixed", c.LLM.Model)
}

func TestLoad_GeminiKey(t *testing.T) {
	v, _ := newViper(t)
	t.Setenv("ANTHROPIC_API_KEY", "anthropic")
	t.Setenv("GEMINI_API_KEY", "gemini")
	v.Set("llm.provider", "Gemini")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderGemini, c.LLM.Provider)
	assert.Equal(t, "gemini", c.LLM.APIKey)
}

func TestValidate_Malformed(t *testing.T) {
	v, _ := newViper(t)
	v.Set("llm.api_key", "k")
	v.Set("auth.jwt_secret", "s")
	v.Set("llm.provider", "openai")
	v.Set("server.port", 0)
	v.Set("log.format", "xml")
	v.Set("review.human_review_threshold", "urgent")
	v.Set("rag.chunk_overlap", 2000)

	c, err := Load(v)
	require.NoError(t, err)

	err = c.Validate()
	require.Error(t, err)
	for _, want := range []string{"llm.provider", "server.port", "log.format", "human_review_threshold", "chunk_overlap"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEnvVars(t *testing.T) {
	assert.Equal(t, []string{"CODELENS_LOG_LEVEL"}, EnvVars("log.level"))
	assert.Equal(t, []string{"CODELENS_DATABASE_URL", "DATABASE_URL"}, EnvVars("database.url"))
}
