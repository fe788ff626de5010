package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/llm"
	"github.com/joescharf/codelens/internal/models"
	"github.com/joescharf/codelens/internal/prompt"
)

// MaxCodeLength is the default upper bound on submitted code, in characters.
const MaxCodeLength = 50000

// explanationCodeLimit bounds how much code is repeated in the explanations prompt.
const explanationCodeLimit = 8000

// aspectTemplates maps each aspect to the template that analyzes it.
var aspectTemplates = map[models.Aspect]string{
	models.AspectSyntax:         prompt.SyntaxAnalysis,
	models.AspectSecurity:       prompt.SecurityScan,
	models.AspectPerformance:    prompt.PerformanceAnalysis,
	models.AspectStyle:          prompt.StyleCheck,
	models.AspectBestPractices:  prompt.BestPractices,
	models.AspectCommentQuality: prompt.CommentQuality,
}

// Config holds orchestrator settings.
type Config struct {
	Model                string
	MaxCodeLength        int
	Concurrency          int
	Explanations         bool
	HumanReviewThreshold models.Severity
}

// Completer is the LLM seam used by the orchestrator.
type Completer interface {
	Complete(ctx context.Context, req llm.Request, requiredKeys ...string) (map[string]json.RawMessage, error)
}

// Orchestrator runs one templated LLM call per aspect and aggregates the results.
type Orchestrator struct {
	llm     Completer
	prompts *prompt.Service
	cfg     Config
	logger  *slog.Logger
}

// New creates an orchestrator. A nil logger uses slog.Default().
func New(c Completer, p *prompt.Service, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MaxCodeLength <= 0 {
		cfg.MaxCodeLength = MaxCodeLength
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = len(models.Aspects)
	}
	if !cfg.HumanReviewThreshold.Valid() {
		cfg.HumanReviewThreshold = models.SeverityMedium
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{llm: c, prompts: p, cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Validate checks req against the length limit and the language allow-list
// and returns it normalized: lower-case language, file type defaulted to the
// language's first extension.
func (o *Orchestrator) Validate(req models.AnalysisRequest) (models.AnalysisRequest, error) {
	if strings.TrimSpace(req.Code) == "" {
		return req, apperr.Validation("code must not be empty")
	}
	if n := utf8.RuneCountInString(req.Code); n > o.cfg.MaxCodeLength {
		return req, apperr.Validation("code exceeds maximum length of %d characters (got %d)", o.cfg.MaxCodeLength, n)
	}

	lang, ok := models.LookupLanguage(req.Language)
	if !ok {
		return req, apperr.Validation("unsupported language %q (supported: %s)",
			req.Language, strings.Join(models.LanguageCodes(), ", "))
	}
	req.Language = lang.Code

	ft := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.FileType), "."))
	switch {
	case ft == "":
		req.FileType = lang.FileExtensions[0]
	case lang.HasExtension(ft):
		req.FileType = ft
	default:
		return req, apperr.Validation("file type %q does not match language %s (expected one of: %s)",
			req.FileType, lang.Code, strings.Join(lang.FileExtensions, ", "))
	}
	return req, nil
}

// Review validates req, analyzes every aspect and returns the aggregated result.
// No LLM call is made when validation fails. A failing aspect contributes an
// empty list and a warning; the review fails only when every aspect fails.
func (o *Orchestrator) Review(ctx context.Context, req models.AnalysisRequest) (*models.AggregatedReview, error) {
	start := time.Now()

	req, err := o.Validate(req)
	if err != nil {
		return nil, err
	}

	results := make([]models.AspectResult, len(models.Aspects))
	errs := make([]error, len(models.Aspects))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, aspect := range models.Aspects {
		g.Go(func() error {
			findings, err := o.runAspect(ctx, aspect, req)
			results[i] = models.AspectResult{Aspect: aspect, Findings: findings}
			if err != nil {
				errs[i] = err
				results[i].Err = err.Error()
				o.logger.Warn("aspect failed", "aspect", aspect, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(models.Aspects) {
		return nil, fmt.Errorf("all review aspects failed: %w", firstErr)
	}

	out := &models.AggregatedReview{
		ReviewID:               ulid.Make().String(),
		Model:                  o.cfg.Model,
		AnalysisComplete:       failed == 0,
		Explanations:           []models.Explanation{},
		ImprovementSuggestions: []models.Suggestion{},
		LearningResources:      []string{},
		CreatedAt:              time.Now().UTC(),
	}
	for _, r := range results {
		out.SetFindings(r.Aspect, r.Findings)
		if r.Err != "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s analysis failed: %s", r.Aspect, r.Err))
		}
	}
	out.Summary = summarize(out, req)
	out.SeverityLevel = out.Summary.OverallSeverity
	out.RequiresHumanReview = needsHumanReview(out.AllFindings(), o.cfg.HumanReviewThreshold)

	if o.cfg.Explanations {
		if err := o.explain(ctx, req, out); err != nil {
			o.logger.Warn("explanations failed", "error", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("explanations unavailable: %v", err))
		}
	}

	out.ProcessingTimeSeconds = math.Round(time.Since(start).Seconds()*1000) / 1000
	return out, nil
}

func (o *Orchestrator) runAspect(ctx context.Context, aspect models.Aspect, req models.AnalysisRequest) ([]models.Finding, error) {
	id := aspectTemplates[aspect]
	tmpl, err := o.prompts.Get(id)
	if err != nil {
		return nil, err
	}
	text, err := o.prompts.Render(id, map[string]string{
		"language": req.Language,
		"code":     req.Code,
		"context":  req.Context,
	})
	if err != nil {
		return nil, err
	}

	key := tmpl.OutputKey
	if key == "" {
		key = "issues"
	}
	obj, err := o.llm.Complete(ctx, llm.Request{
		Prompt:      text,
		Model:       o.modelFor(tmpl),
		Temperature: tmpl.Temperature,
	}, key)
	if err != nil {
		return nil, err
	}

	var findings []models.Finding
	if err := decodeList(obj[key], &findings); err != nil {
		return nil, &llm.ResponseParseError{Reason: fmt.Sprintf("decode %q: %v", key, err)}
	}

	kept := findings[:0]
	for _, f := range findings {
		if strings.TrimSpace(f.Description) != "" {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func (o *Orchestrator) explain(ctx context.Context, req models.AnalysisRequest, out *models.AggregatedReview) error {
	findings, err := json.Marshal(out.AllFindings())
	if err != nil {
		return err
	}
	code := req.Code
	if utf8.RuneCountInString(code) > explanationCodeLimit {
		code = string([]rune(code)[:explanationCodeLimit])
	}

	tmpl, err := o.prompts.Get(prompt.Explanations)
	if err != nil {
		return err
	}
	text, err := o.prompts.Render(prompt.Explanations, map[string]string{
		"language": req.Language,
		"code":     code,
		"findings": string(findings),
	})
	if err != nil {
		return err
	}

	obj, err := o.llm.Complete(ctx, llm.Request{
		Prompt:      text,
		Model:       o.modelFor(tmpl),
		Temperature: tmpl.Temperature,
	}, "explanations")
	if err != nil {
		return err
	}

	if err := decodeList(obj["explanations"], &out.Explanations); err != nil {
		return &llm.ResponseParseError{Reason: fmt.Sprintf("decode explanations: %v", err)}
	}
	// suggestions and resources are optional; a malformed one is dropped with a warning
	if err := decodeList(obj["suggestions"], &out.ImprovementSuggestions); err != nil {
		out.ImprovementSuggestions = nil
		out.Warnings = append(out.Warnings, fmt.Sprintf("explanations: ignoring malformed suggestions: %v", err))
	}
	if err := decodeList(obj["resources"], &out.LearningResources); err != nil {
		out.LearningResources = nil
		out.Warnings = append(out.Warnings, fmt.Sprintf("explanations: ignoring malformed resources: %v", err))
	}
	if out.Explanations == nil {
		out.Explanations = []models.Explanation{}
	}
	if out.ImprovementSuggestions == nil {
		out.ImprovementSuggestions = []models.Suggestion{}
	}
	if out.LearningResources == nil {
		out.LearningResources = []string{}
	}
	return nil
}

func (o *Orchestrator) modelFor(t *prompt.Template) string {
	if t.Model != "" {
		return t.Model
	}
	return o.cfg.Model
}

// decodeList decodes a JSON array; a missing or null value leaves v untouched.
func decodeList(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func summarize(r *models.AggregatedReview, req models.AnalysisRequest) models.Summary {
	s := models.Summary{
		SyntaxIssues:            len(r.SyntaxIssues),
		SecurityVulnerabilities: len(r.SecurityVulnerabilities),
		PerformanceIssues:       len(r.PerformanceIssues),
		StyleViolations:         len(r.StyleViolations),
		BestPracticeViolations:  len(r.BestPracticeViolations),
		CommentQualityIssues:    len(r.CommentQualityIssues),
		CodeLength:              utf8.RuneCountInString(req.Code),
		Language:                req.Language,
	}
	s.TotalIssues = s.SyntaxIssues + s.SecurityVulnerabilities + s.PerformanceIssues +
		s.StyleViolations + s.BestPracticeViolations + s.CommentQualityIssues

	all := r.AllFindings()
	sev := make([]models.Severity, len(all))
	for i, f := range all {
		sev[i] = f.Severity
	}
	s.OverallSeverity = models.MaxSeverity(sev...)
	return s
}

func needsHumanReview(findings []models.Finding, threshold models.Severity) bool {
	for _, f := range findings {
		if f.Severity.Above(threshold) {
			return true
		}
	}
	return false
}
