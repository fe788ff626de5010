package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	api *anthropic.Client
}

// NewAnthropicProvider creates a provider. An empty apiKey falls back to the
// SDK's own ANTHROPIC_API_KEY lookup; an empty baseURL uses the public API.
func NewAnthropicProvider(apiKey, baseURL string, maxRetries int) *AnthropicProvider {
	opts := []option.RequestOption{option.WithMaxRetries(maxRetries)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{api: &client}
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.api.Messages.New(ctx, params)
	if err != nil {
		return "", p.mapError(ctx, err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &ResponseParseError{Reason: "no text content in API response"}
}

func (p *AnthropicProvider) mapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &UpstreamTimeoutError{Provider: ProviderAnthropic, Err: err}
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return &UpstreamRateLimitError{Provider: ProviderAnthropic, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &UpstreamTimeoutError{Provider: ProviderAnthropic, Err: err}
		}
		return &UpstreamError{Provider: ProviderAnthropic, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &UpstreamError{Provider: ProviderAnthropic, Err: fmt.Errorf("anthropic API call: %w", err)}
}
