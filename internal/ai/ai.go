// Package ai adapts chat-completion providers to a single client interface.
//
// Each provider client sends a system prompt plus one user message and
// returns the generated text. Hitting the provider's token limit is
// reported as ErrTokenLimit so callers can offer an uncapped retry.
package ai

import "context"

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Params configures a provider client.
type Params struct {
	Provider        string
	Model           string
	MaxTokens       int
	Temperature     float64
	ReasoningEffort string

	// BaseURL overrides the provider endpoint, e.g. for a proxy.
	BaseURL string
	APIKey  string
}

// Request is a single completion request.
type Request struct {
	System string
	User   string

	// IgnoreCap drops the configured token cap, for retrying a request
	// that was cut off.
	IgnoreCap bool
}

// Response is the generated completion.
type Response struct {
	Text string
}

// Client generates completions from one provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Close() error
}
