package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/codelens/internal/apperr"
)

// Provider names accepted by NewProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultModel is used when neither the request nor the client names a model.
const DefaultModel = "claude-haiku-4-5-20251001"

// Request is a single prompt sent to a provider.
type Request struct {
	Prompt      string
	Model       string
	System      string
	// Temperature is nil to use the client default; an explicit 0 is kept.
	Temperature *float64
	MaxTokens   int64
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }

// Provider performs one completion call and returns the raw text of the reply.
// Implementations map their SDK errors onto the error types in this package.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// UpstreamTimeoutError is returned when the provider call exceeds its deadline.
type UpstreamTimeoutError struct {
	Provider string
	Err      error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out: %v", e.Provider, e.Err)
}
func (e *UpstreamTimeoutError) Unwrap() error          { return e.Err }
func (e *UpstreamTimeoutError) ErrorKind() apperr.Kind { return apperr.KindUpstreamTimeout }

// UpstreamRateLimitError is returned when the provider throttles the caller.
type UpstreamRateLimitError struct {
	Provider string
	Err      error
}

func (e *UpstreamRateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}
func (e *UpstreamRateLimitError) Unwrap() error          { return e.Err }
func (e *UpstreamRateLimitError) ErrorKind() apperr.Kind { return apperr.KindRateLimited }

// UpstreamError covers any other provider failure.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream error: %v", e.Provider, e.Err)
}
func (e *UpstreamError) Unwrap() error          { return e.Err }
func (e *UpstreamError) ErrorKind() apperr.Kind { return apperr.KindUpstream }

// ResponseParseError is returned when the model output is not a JSON object
// or lacks a required top-level key.
type ResponseParseError struct {
	Reason string
	Raw    string
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("parse LLM response: %s", e.Reason)
}
func (e *ResponseParseError) ErrorKind() apperr.Kind { return apperr.KindUpstream }

// Options configures a Client.
type Options struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int64
	Temperature float64
}

// Client sends prompts through a Provider and decodes JSON replies.
type Client struct {
	provider Provider
	opts     Options
}

// NewClient creates a client around the given provider.
func NewClient(p Provider, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{provider: p, opts: opts}
}

// Model returns the client's default model id.
func (c *Client) Model() string { return c.opts.Model }

// Provider returns the name of the underlying provider.
func (c *Client) Provider() string { return c.provider.Name() }

// Complete sends req and parses the reply as a JSON object. Each key in
// requiredKeys must be present at the top level.
func (c *Client) Complete(ctx context.Context, req Request, requiredKeys ...string) (map[string]json.RawMessage, error) {
	text, err := c.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseObject(text, requiredKeys...)
}

// CompleteText sends req and returns the trimmed reply text.
func (c *Client) CompleteText(ctx context.Context, req Request) (string, error) {
	text, err := c.generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = c.opts.Model
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.opts.MaxTokens
	}
	if req.Temperature == nil {
		req.Temperature = Float(c.opts.Temperature)
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	text, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", classify(c.provider.Name(), err)
	}
	return text, nil
}

// classify leaves already-typed errors alone and maps the rest.
func classify(provider string, err error) error {
	var (
		te *UpstreamTimeoutError
		re *UpstreamRateLimitError
		ue *UpstreamError
		pe *ResponseParseError
	)
	switch {
	case errors.As(err, &te), errors.As(err, &re), errors.As(err, &ue), errors.As(err, &pe):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &UpstreamTimeoutError{Provider: provider, Err: err}
	default:
		return &UpstreamError{Provider: provider, Err: err}
	}
}

// ParseObject extracts a JSON object from model output. Markdown fencing is
// stripped; when the text still does not decode, the outermost {...} span is
// tried.
func ParseObject(text string, requiredKeys ...string) (map[string]json.RawMessage, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, &ResponseParseError{Reason: "empty response", Raw: text}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, &ResponseParseError{Reason: "no JSON object in response", Raw: text}
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err != nil {
			return nil, &ResponseParseError{Reason: err.Error(), Raw: text}
		}
	}
	if obj == nil {
		return nil, &ResponseParseError{Reason: "response is not a JSON object", Raw: text}
	}

	for _, k := range requiredKeys {
		if _, ok := obj[k]; !ok {
			return nil, &ResponseParseError{Reason: fmt.Sprintf("missing required key %q", k), Raw: text}
		}
	}
	return obj, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		} else {
			text = ""
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// NewProvider builds the provider named by name.
func NewProvider(ctx context.Context, name, apiKey, baseURL string, maxRetries int) (Provider, error) {
	switch strings.ToLower(name) {
	case "", ProviderAnthropic:
		return NewAnthropicProvider(apiKey, baseURL, maxRetries), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want %s or %s)", name, ProviderAnthropic, ProviderGemini)
	}
}
