// Package prompt loads versioned prompt templates and renders them with named
// parameters.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/codelens/internal/apperr"
)

//go:embed templates/*.yaml
var defaultFS embed.FS

// Template ids used by the review and conversation paths.
const (
	SyntaxAnalysis      = "syntax_analysis"
	SecurityScan        = "security_scan"
	PerformanceAnalysis = "performance_analysis"
	StyleCheck          = "style_check"
	BestPractices       = "best_practices"
	CommentQuality      = "comment_quality"
	Explanations        = "explanations"
	Conversation        = "conversation"
)

// Placeholder is a named substitution point in a template body, written as {name}.
type Placeholder struct {
	Name     string `yaml:"name" toml:"name" json:"name"`
	Required bool   `yaml:"required" toml:"required" json:"required"`
}

// Template is a static prompt with named placeholders. OutputSchema documents the
// JSON the model is asked to return; it is not enforced beyond OutputKey.
type Template struct {
	ID           string        `yaml:"id" toml:"id" json:"id"`
	Version      string        `yaml:"version" toml:"version" json:"version"`
	Description  string        `yaml:"description" toml:"description" json:"description,omitempty"`
	Model        string        `yaml:"model" toml:"model" json:"model,omitempty"`
	Temperature  *float64      `yaml:"temperature" toml:"temperature" json:"temperature,omitempty"`
	OutputKey    string        `yaml:"output_key" toml:"output_key" json:"output_key,omitempty"`
	Placeholders []Placeholder `yaml:"placeholders" toml:"placeholders" json:"placeholders"`
	OutputSchema string        `yaml:"output_schema" toml:"output_schema" json:"output_schema,omitempty"`
	Body         string        `yaml:"template" toml:"template" json:"template"`
}

type templateFile struct {
	Templates []Template `yaml:"templates" toml:"templates"`
}

// TemplateNotFoundError is returned for an unknown template id.
type TemplateNotFoundError struct {
	ID string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template not found: %s", e.ID)
}

func (e *TemplateNotFoundError) ErrorKind() apperr.Kind { return apperr.KindInternal }

// MissingParameterError is returned when a required placeholder has no value.
type MissingParameterError struct {
	TemplateID string
	Name       string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("template %s: missing required parameter %q", e.TemplateID, e.Name)
}

func (e *MissingParameterError) ErrorKind() apperr.Kind { return apperr.KindValidation }

// Service holds the templates loaded at startup. It is read-only after
// construction and safe for concurrent use.
type Service struct {
	templates map[string]*Template
}

// New validates the given templates and returns a Service serving them.
func New(templates []Template) (*Service, error) {
	s := &Service{templates: make(map[string]*Template, len(templates))}
	for i := range templates {
		t := templates[i]
		if err := validate(&t); err != nil {
			return nil, err
		}
		if _, dup := s.templates[t.ID]; dup {
			return nil, fmt.Errorf("duplicate prompt template id: %s", t.ID)
		}
		s.templates[t.ID] = &t
	}
	return s, nil
}

// Load reads templates from dir, or the embedded defaults when dir is empty.
// Files in dir override embedded templates with the same id.
func Load(dir string) (*Service, error) {
	templates, err := readFS(defaultFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("load default templates: %w", err)
	}
	if dir == "" {
		return New(templates)
	}

	custom, err := readFS(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("load templates from %s: %w", dir, err)
	}
	merged := make(map[string]Template, len(templates))
	order := make([]string, 0, len(templates))
	for _, t := range append(templates, custom...) {
		if _, seen := merged[t.ID]; !seen {
			order = append(order, t.ID)
		}
		merged[t.ID] = t
	}
	out := make([]Template, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return New(out)
}

// readFS decodes every .yaml, .yml and .toml file directly under root.
func readFS(fsys fs.FS, root string) ([]Template, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Template
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, name)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var f templateFile
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &f); err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
		case ".toml":
			if _, err := toml.Decode(string(data), &f); err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
		default:
			continue
		}
		out = append(out, f.Templates...)
	}
	return out, nil
}

func validate(t *Template) error {
	if t.ID == "" {
		return fmt.Errorf("prompt template without id")
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("prompt template %s: empty template body", t.ID)
	}
	seen := make(map[string]bool, len(t.Placeholders))
	for _, p := range t.Placeholders {
		if p.Name == "" {
			return fmt.Errorf("prompt template %s: placeholder without name", t.ID)
		}
		if seen[p.Name] {
			return fmt.Errorf("prompt template %s: duplicate placeholder %q", t.ID, p.Name)
		}
		seen[p.Name] = true
		if p.Required && !strings.Contains(t.Body, marker(p.Name)) {
			return fmt.Errorf("prompt template %s: required placeholder %q not used in template", t.ID, p.Name)
		}
	}
	return nil
}

func marker(name string) string {
	return "{" + name + "}"
}

// Get returns the template with the given id.
func (s *Service) Get(id string) (*Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, &TemplateNotFoundError{ID: id}
	}
	return t, nil
}

// List returns all templates sorted by id.
func (s *Service) List() []*Template {
	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Render substitutes params into the template body in a single pass, so values
// that themselves contain {name} markers are left untouched. Optional
// placeholders without a value render as the empty string; parameters the
// template does not declare are ignored.
func (s *Service) Render(id string, params map[string]string) (string, error) {
	t, err := s.Get(id)
	if err != nil {
		return "", err
	}

	pairs := make([]string, 0, 2*len(t.Placeholders))
	for _, p := range t.Placeholders {
		v, ok := params[p.Name]
		if p.Required && (!ok || v == "") {
			return "", &MissingParameterError{TemplateID: id, Name: p.Name}
		}
		pairs = append(pairs, marker(p.Name), v)
	}
	return strings.NewReplacer(pairs...).Replace(t.Body), nil
}
