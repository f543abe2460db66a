package ai

import (
	"context"
	"fmt"
)

// New creates a client for the provider named in params.
func New(ctx context.Context, params Params) (Client, error) {
	if params.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	switch params.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(params), nil
	case ProviderAnthropic:
		return NewAnthropic(params), nil
	case ProviderGemini:
		return NewGemini(ctx, params)
	default:
		return nil, fmt.Errorf("unknown provider %q", params.Provider)
	}
}
