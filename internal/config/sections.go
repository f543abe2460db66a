package config

import "github.com/quillworks/quill/internal/config/registry"

// WritingConfig is a snapshot of the writing assistance settings.
type WritingConfig struct {
	Provider         string
	Model            string
	CustomModel      string
	MaxTokens        int
	Temperature      float64
	ReasoningEffort  string
	ProxyURL         string
	SystemPrompt     string
	SeparatorText    string
	AcceptRejectFlow bool
}

// LoggingConfig is a snapshot of the logging settings.
type LoggingConfig struct {
	Level string
	File  string
}

// Writing returns the current writing assistance settings.
func (s *Store) Writing() WritingConfig {
	a := s.accessor()
	return WritingConfig{
		Provider:         stringOr(a, "writing.provider"),
		Model:            stringOr(a, "writing.model"),
		CustomModel:      stringOr(a, "writing.customModel"),
		MaxTokens:        intOr(a, "writing.maxTokens"),
		Temperature:      floatOr(a, "writing.temperature"),
		ReasoningEffort:  stringOr(a, "writing.reasoningEffort"),
		ProxyURL:         stringOr(a, "writing.proxyUrl"),
		SystemPrompt:     stringOr(a, "writing.systemPrompt"),
		SeparatorText:    stringOr(a, "writing.separatorText"),
		AcceptRejectFlow: boolOr(a, "writing.acceptRejectFlow"),
	}
}

// Logging returns the current logging settings.
func (s *Store) Logging() LoggingConfig {
	a := s.accessor()
	return LoggingConfig{
		Level: stringOr(a, "logging.level"),
		File:  stringOr(a, "logging.file"),
	}
}

func stringOr(a *registry.Accessor, path string) string {
	v, _ := a.GetString(path)
	return v
}

func intOr(a *registry.Accessor, path string) int {
	v, _ := a.GetInt(path)
	return v
}

func floatOr(a *registry.Accessor, path string) float64 {
	v, _ := a.GetFloat(path)
	return v
}

func boolOr(a *registry.Accessor, path string) bool {
	v, _ := a.GetBool(path)
	return v
}
