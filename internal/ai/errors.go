package ai

import (
	"errors"
	"fmt"
)

// ErrTokenLimit reports that the provider stopped generating because the
// configured token cap was reached. The partial output is discarded.
var ErrTokenLimit = errors.New("completion stopped at the token limit")

// ErrNoAPIKey reports that no credential is stored for the provider.
var ErrNoAPIKey = errors.New("no API key configured")

// CredentialError reports that the provider rejected the stored credential.
type CredentialError struct {
	Provider string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s rejected the API key: %v", e.Provider, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// ProviderError reports any other provider-side failure.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
