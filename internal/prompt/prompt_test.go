package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/apperr"
)

func TestLoadDefaults(t *testing.T) {
	svc, err := Load("")
	require.NoError(t, err)

	for _, id := range []string{
		SyntaxAnalysis, SecurityScan, PerformanceAnalysis, StyleCheck,
		BestPractices, CommentQuality, Explanations, Conversation,
	} {
		tmpl, err := svc.Get(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, tmpl.Version, id)
		assert.NotEmpty(t, tmpl.Body, id)
	}

	sec, _ := svc.Get(SecurityScan)
	assert.Equal(t, "vulnerabilities", sec.OutputKey)
	syn, _ := svc.Get(SyntaxAnalysis)
	assert.Equal(t, "issues", syn.OutputKey)
	// an explicit zero must load as set, not as absent
	require.NotNil(t, syn.Temperature)
	assert.Zero(t, *syn.Temperature)
	expl, _ := svc.Get(Explanations)
	require.NotNil(t, expl.Temperature)
	assert.InDelta(t, 0.2, *expl.Temperature, 1e-9)

	list := svc.List()
	require.Len(t, list, 8)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestRender(t *testing.T) {
	svc, err := Load("")
	require.NoError(t, err)

	params := map[string]string{"language": "python", "code": "print('hi')"}

	t.Run("deterministic", func(t *testing.T) {
		a, err := svc.Render(SyntaxAnalysis, params)
		require.NoError(t, err)
		b, err := svc.Render(SyntaxAnalysis, params)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Contains(t, a, "print('hi')")
		assert.Contains(t, a, "python")
		assert.NotContains(t, a, "{code}")
		assert.NotContains(t, a, "{context}")
	})

	t.Run("missing required parameter", func(t *testing.T) {
		_, err := svc.Render(SyntaxAnalysis, map[string]string{"language": "python"})
		var mp *MissingParameterError
		require.True(t, errors.As(err, &mp))
		assert.Equal(t, "code", mp.Name)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("empty required parameter", func(t *testing.T) {
		_, err := svc.Render(Conversation, map[string]string{"question": ""})
		var mp *MissingParameterError
		assert.True(t, errors.As(err, &mp))
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := svc.Render("nope", params)
		var nf *TemplateNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "nope", nf.ID)
	})

	t.Run("values are not re-expanded", func(t *testing.T) {
		out, err := svc.Render(SyntaxAnalysis, map[string]string{
			"language": "python",
			"code":     "x = '{language}'",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "x = '{language}'")
	})
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		tmpl Template
	}{
		{"missing id", Template{Body: "x"}},
		{"empty body", Template{ID: "a", Body: "  "}},
		{"unused required", Template{ID: "a", Body: "hello", Placeholders: []Placeholder{{Name: "who", Required: true}}}},
		{"duplicate placeholder", Template{ID: "a", Body: "{x}", Placeholders: []Placeholder{{Name: "x"}, {Name: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]Template{tt.tmpl})
			assert.Error(t, err)
		})
	}

	_, err := New([]Template{{ID: "a", Body: "x"}, {ID: "a", Body: "y"}})
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	toml := `
[[templates]]
id = "conversation"
version = "v2"
template = "Q: {question}"

  [[templates.placeholders]]
  name = "question"
  required = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "override.toml"), []byte(toml), 0o644))

	yml := `templates:
  - id: greeting
    version: v1
    placeholders:
      - name: name
        required: true
    template: "Hello {name}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yml"), []byte(yml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	svc, err := Load(dir)
	require.NoError(t, err)

	conv, err := svc.Get(Conversation)
	require.NoError(t, err)
	assert.Equal(t, "v2", conv.Version)

	out, err := svc.Render(Conversation, map[string]string{"question": "why?"})
	require.NoError(t, err)
	assert.Equal(t, "Q: why?", out)

	out, err = svc.Render("greeting", map[string]string{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ada", out)

	// untouched defaults remain available
	_, err = svc.Get(SecurityScan)
	assert.NoError(t, err)
}

func TestLoadBadDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
