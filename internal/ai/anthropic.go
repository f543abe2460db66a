package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicUncappedTokens is the cap used for uncapped retries; the
// Anthropic API requires max_tokens on every request.
const anthropicUncappedTokens = 8192

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
	params Params
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(params Params) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(params.APIKey)}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		params: params,
	}
}

// Complete sends one system+user exchange and returns the reply text.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := int64(anthropicUncappedTokens)
	if !req.IgnoreCap && c.params.MaxTokens > 0 {
		maxTokens = int64(c.params.MaxTokens)
	}

	body := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.params.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(c.params.Temperature),
	}

	msg, err := c.client.Messages.New(ctx, body)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	if string(msg.StopReason) == "max_tokens" && !req.IgnoreCap {
		return Response{}, ErrTokenLimit
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return Response{Text: sb.String()}, nil
}

// Close implements Client; the HTTP client needs no teardown.
func (c *AnthropicClient) Close() error {
	return nil
}

func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden {
			return &CredentialError{Provider: ProviderAnthropic, Err: err}
		}
		return &ProviderError{
			Provider: ProviderAnthropic,
			Status:   apierr.StatusCode,
			Message:  err.Error(),
			Err:      err,
		}
	}
	return &ProviderError{Provider: ProviderAnthropic, Message: err.Error(), Err: err}
}

var _ Client = (*AnthropicClient)(nil)
