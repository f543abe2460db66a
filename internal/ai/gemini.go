package ai

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient talks to the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	params Params
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, params Params) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(params.APIKey))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Message: err.Error(), Err: err}
	}
	return &GeminiClient{client: client, params: params}, nil
}

// Complete sends one system+user exchange and returns the reply text.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := c.client.GenerativeModel(c.params.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}

	temp := float32(c.params.Temperature)
	model.Temperature = &temp
	if !req.IgnoreCap && c.params.MaxTokens > 0 {
		limit := int32(c.params.MaxTokens)
		model.MaxOutputTokens = &limit
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return Response{}, &ProviderError{Provider: ProviderGemini, Message: err.Error(), Err: err}
	}
	if len(resp.Candidates) == 0 {
		return Response{}, &ProviderError{Provider: ProviderGemini, Message: "empty response"}
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens && !req.IgnoreCap {
		return Response{}, ErrTokenLimit
	}

	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return Response{Text: sb.String()}, nil
}

// Close releases the underlying gRPC connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

var _ Client = (*GeminiClient)(nil)
