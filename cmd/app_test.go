package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/health"
	"github.com/joescharf/codelens/internal/models"
)

func TestResolveLanguage(t *testing.T) {
	lang, ext, err := resolveLanguage("src/app.tsx", "")
	require.NoError(t, err)
	assert.Equal(t, "typescript", lang)
	assert.Equal(t, "tsx", ext)

	lang, _, err = resolveLanguage("main.go", "")
	require.NoError(t, err)
	assert.Equal(t, "go", lang)

	// The flag wins over the extension.
	lang, ext, err = resolveLanguage("script.txt", "python")
	require.NoError(t, err)
	assert.Equal(t, "python", lang)
	assert.Equal(t, "txt", ext)

	_, _, err = resolveLanguage("Makefile", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--language")

	_, _, err = resolveLanguage("-", "")
	require.Error(t, err)
}

func TestApp_DocsAndUsers(t *testing.T) {
	testEnv(t)
	viper.Set("auth.jwt_secret", "test-secret")
	ctx := context.Background()

	a, err := newApp(&bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.openEvents())
	require.NoError(t, a.openDocs(ctx))
	require.NoError(t, a.openUsers(ctx))

	doc, err := a.rag.Ingest(ctx, "notes.md", "Goroutines are cheap. Channels connect them.")
	require.NoError(t, err)
	assert.Equal(t, "notes.md", doc.Filename)

	docs, err := a.rag.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	u, err := a.auth.CreateUser(ctx, "Admin@Example.com", "admin", "correct-horse", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", u.Email)

	report := a.healthChecker().Check(ctx)
	assert.Equal(t, health.StatusHealthy, report.Status)
	names := make([]string, 0, len(report.Components))
	for _, c := range report.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"prompts", "database", "documents", "log_dir"}, names)

	require.NoError(t, a.Close())
	assert.Nil(t, a.closers)
}

func TestApp_OpenLLM(t *testing.T) {
	testEnv(t)
	viper.Set("llm.api_key", "sk-test")
	viper.Set("llm.model", "claude-sonnet-4-5")

	a, err := newApp(&bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.cfg.ValidateLLM())
	require.NoError(t, a.openLLM(context.Background()))
	assert.Equal(t, "anthropic", a.client.Provider())
	assert.Equal(t, "claude-sonnet-4-5", a.client.Model())
	assert.NotNil(t, a.reviewer)

	// Validation happens before any model call.
	_, err = a.reviewer.Validate(models.AnalysisRequest{Code: "x", Language: "cobol"})
	assert.Error(t, err)
}

func TestApp_UnknownProvider(t *testing.T) {
	testEnv(t)
	viper.Set("llm.provider", "openai")
	viper.Set("llm.api_key", "k")

	a, err := newApp(&bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Error(t, a.cfg.ValidateLLM())
	assert.Error(t, a.openLLM(context.Background()))
}
