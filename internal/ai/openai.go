package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	params Params
}

// NewOpenAI creates an OpenAI client. A non-empty BaseURL routes requests
// through that endpoint instead of the public API.
func NewOpenAI(params Params) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(params.APIKey)}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		params: params,
	}
}

// Complete sends one system+user exchange and returns the reply text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.params.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(c.params.Temperature),
	}
	if !req.IgnoreCap && c.params.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(c.params.MaxTokens))
	}
	if c.params.ReasoningEffort != "" {
		body.ReasoningEffort = shared.ReasoningEffort(c.params.ReasoningEffort)
	}

	resp, err := c.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &ProviderError{Provider: ProviderOpenAI, Message: "empty response"}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return Response{}, ErrTokenLimit
	}
	return Response{Text: choice.Message.Content}, nil
}

// Close implements Client; the HTTP client needs no teardown.
func (c *OpenAIClient) Close() error {
	return nil
}

func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden {
			return &CredentialError{Provider: ProviderOpenAI, Err: err}
		}
		return &ProviderError{
			Provider: ProviderOpenAI,
			Status:   apierr.StatusCode,
			Message:  apierr.Message,
			Err:      err,
		}
	}
	return &ProviderError{Provider: ProviderOpenAI, Message: err.Error(), Err: err}
}

var _ Client = (*OpenAIClient)(nil)
