package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrAlreadyRegistered is returned when attempting to register a duplicate setting.
var ErrAlreadyRegistered = errors.New("setting already registered")

// Registry maintains all known settings definitions and provides
// type-safe access to setting values.
type Registry struct {
	mu       sync.RWMutex
	settings map[string]*Setting
	sections map[string][]*Setting // Settings grouped by section
}

// New creates a new settings registry.
func New() *Registry {
	return &Registry{
		settings: make(map[string]*Setting),
		sections: make(map[string][]*Setting),
	}
}

// NewWithDefaults creates a registry with built-in default settings.
func NewWithDefaults() *Registry {
	r := New()
	r.RegisterDefaults()
	return r
}

// Register adds a setting definition to the registry.
// Returns an error if a setting with the same path already exists.
func (r *Registry) Register(setting Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settings[setting.Path]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, setting.Path)
	}

	s := &setting
	r.settings[setting.Path] = s

	section := extractSection(setting.Path)
	r.sections[section] = append(r.sections[section], s)

	return nil
}

// MustRegister registers a setting and panics on error.
// Useful for registering built-in settings at init time.
func (r *Registry) MustRegister(setting Setting) {
	if err := r.Register(setting); err != nil {
		panic(err)
	}
}

// Get returns the setting definition for the given path.
// Returns nil if the setting is not registered.
func (r *Registry) Get(path string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[path]
}

// Has checks if a setting is registered.
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.settings[path]
	return exists
}

// All returns all registered settings sorted by path.
func (r *Registry) All() []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Setting, 0, len(r.settings))
	for _, s := range r.settings {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	return result
}

// Section returns all settings in a given section (e.g., "writing").
func (r *Registry) Section(name string) []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settings := r.sections[name]
	result := make([]*Setting, len(settings))
	copy(result, settings)
	return result
}

// Deprecated returns all deprecated settings.
func (r *Registry) Deprecated() []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Setting
	for _, s := range r.settings {
		if s.Deprecated {
			result = append(result, s)
		}
	}
	return result
}

// Default returns the default value for a setting.
// Returns nil if the setting is not registered.
func (r *Registry) Default(path string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.settings[path]; ok {
		return s.Default
	}
	return nil
}

// Defaults returns a map of all default values.
func (r *Registry) Defaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.settings))
	for path, s := range r.settings {
		if s.Default != nil {
			result[path] = s.Default
		}
	}
	return result
}

// Validate checks if a value is valid for a setting.
// Unknown settings are allowed (they may belong to a future version).
func (r *Registry) Validate(path string, value any) error {
	r.mu.RLock()
	s, ok := r.settings[path]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	return s.Validate(value)
}

// extractSection extracts the top-level section from a path.
func extractSection(path string) string {
	parts := strings.SplitN(path, ".", 2)
	return parts[0]
}

// Built-in defaults for the writing assistant. These are the lowest
// precedence values; settings files and override files layer on top.
const (
	// DefaultModel is the model used when nothing else resolves.
	DefaultModel = "gpt-4o"

	// DefaultMaxTokens caps generation length unless a retry disables it.
	DefaultMaxTokens = 1200

	// DefaultTemperature is the default sampling temperature.
	DefaultTemperature = 0.3

	// CustomModelSentinel in writing.model redirects resolution to
	// writing.customModel.
	CustomModelSentinel = "custom"
)

// DefaultSystemPrompt is the built-in system prompt.
const DefaultSystemPrompt = `You are a helpful assistant. Your job is to perform the tasks related to rewriting text inputs given by the user.
If the input text contains any special syntax then strictly follow that syntax, e.g. for markdown return markdown, for latex return latex etc.
Do not return markdown for latex, and vice versa.
You must return only the modified output.
Do not explain, greet, apologize, or add any commentary.
Do not say things like 'here is the revised text'.
Simply return the text as if you're a function returning a value.`

// DefaultQuickFixes are the built-in quick-fix actions, as raw
// title/description/prompt maps (ids are assigned by the catalog).
var DefaultQuickFixes = []map[string]any{
	{
		"title":       "Rephrase the selected text",
		"description": "Rephrases the selected text",
		"prompt":      "Rephrase the given text and make the sentences more clear and readable.",
	},
	{
		"title":       "Suggest headlines for selection",
		"description": "Suggests some appropriate headlines for the selected text",
		"prompt":      "Suggest 2-3 short headlines based on the given text.",
	},
}

// DefaultRewriteOptions are the built-in rewrite actions.
var DefaultRewriteOptions = []map[string]any{
	{
		"title":       "Change to professional tone",
		"description": "Changes the selected text's tone to professional",
		"prompt":      "Make the given text better and rewrite it in a professional tone.",
	},
	{
		"title":       "Change to casual tone",
		"description": "Changes the selected text's tone to casual",
		"prompt":      "Make the given text better and rewrite it in a casual tone.",
	},
}

// RegisterDefaults registers all built-in Quill settings.
func (r *Registry) RegisterDefaults() {
	// Generation settings
	r.MustRegister(Setting{
		Path:        "writing.provider",
		Type:        TypeEnum,
		Default:     "openai",
		Description: "The completion provider backing rewrite actions",
		Scope:       ScopeGlobal | ScopeWorkspace,
		Enum:        []any{"openai", "anthropic", "gemini"},
		Tags:        []string{"writing", "provider"},
	})

	r.MustRegister(Setting{
		Path:        "writing.model",
		Type:        TypeString,
		Default:     DefaultModel,
		Description: "Model to use; \"custom\" redirects to writing.customModel",
		Scope:       ScopeAll,
		Tags:        []string{"writing", "provider"},
	})

	r.MustRegister(Setting{
		Path:        "writing.customModel",
		Type:        TypeString,
		Default:     "",
		Description: "Model name to use when writing.model is \"custom\"",
		Scope:       ScopeAll,
		Tags:        []string{"writing", "provider"},
	})

	r.MustRegister(Setting{
		Path:        "writing.maxTokens",
		Type:        TypeInt,
		Default:     DefaultMaxTokens,
		Description: "Maximum number of tokens in a generated rewrite",
		Scope:       ScopeAll,
		Minimum:     MinValue(1),
		Tags:        []string{"writing", "provider"},
	})

	r.MustRegister(Setting{
		Path:        "writing.temperature",
		Type:        TypeFloat,
		Default:     DefaultTemperature,
		Description: "Sampling temperature for generation",
		Scope:       ScopeAll,
		Minimum:     MinValue(0),
		Maximum:     MaxValue(2),
		Tags:        []string{"writing", "provider"},
	})

	r.MustRegister(Setting{
		Path:        "writing.reasoningEffort",
		Type:        TypeEnum,
		Default:     "",
		Description: "Reasoning effort for models that support it",
		Scope:       ScopeAll,
		Enum:        []any{"", "minimal", "low", "medium", "high"},
		Tags:        []string{"writing", "provider"},
	})

	r.MustRegister(Setting{
		Path:        "writing.proxyUrl",
		Type:        TypeString,
		Default:     "",
		Description: "Proxy endpoint for the completion API; requires a custom model",
		Scope:       ScopeGlobal | ScopeWorkspace,
		Tags:        []string{"writing", "provider"},
	})

	// Prompt and action settings
	r.MustRegister(Setting{
		Path:        "writing.systemPrompt",
		Type:        TypeString,
		Default:     DefaultSystemPrompt,
		Description: "System prompt sent with every rewrite request",
		Scope:       ScopeAll,
		Tags:        []string{"writing", "prompt"},
	})

	r.MustRegister(Setting{
		Path:        "writing.quickFixes",
		Type:        TypeArray,
		Default:     DefaultQuickFixes,
		Description: "Quick-fix actions as {title, description, prompt} entries",
		Scope:       ScopeAll,
		Tags:        []string{"writing", "actions"},
	})

	r.MustRegister(Setting{
		Path:        "writing.rewriteOptions",
		Type:        TypeArray,
		Default:     DefaultRewriteOptions,
		Description: "Rewrite actions as {title, description, prompt} entries",
		Scope:       ScopeAll,
		Tags:        []string{"writing", "actions"},
	})

	// Flow settings
	r.MustRegister(Setting{
		Path:        "writing.separatorText",
		Type:        TypeString,
		Default:     "",
		Description: "Separator line around generated text; blank uses an empty line",
		Scope:       ScopeAll,
		Tags:        []string{"writing", "flow"},
	})

	r.MustRegister(Setting{
		Path:        "writing.acceptRejectFlow",
		Type:        TypeBool,
		Default:     true,
		Description: "Review generated text side by side before committing",
		Scope:       ScopeGlobal | ScopeWorkspace,
		Tags:        []string{"writing", "flow"},
	})

	// Deprecated: the credential now lives in the secret store.
	r.MustRegister(Setting{
		Path:              "writing.apiKey",
		Type:              TypeString,
		Default:           "",
		Description:       "Deprecated plain-text API key",
		Scope:             ScopeGlobal,
		Deprecated:        true,
		DeprecatedMessage: "API keys are stored in the secret store",
		ReplacedBy:        "secret store key \"writing.apiKey\"",
		Tags:              []string{"writing", "credentials"},
	})

	// Logging settings
	r.MustRegister(Setting{
		Path:        "logging.level",
		Type:        TypeEnum,
		Default:     "info",
		Description: "Logging verbosity level",
		Scope:       ScopeGlobal,
		Enum:        []any{"debug", "info", "warn", "error"},
		Tags:        []string{"logging"},
	})

	r.MustRegister(Setting{
		Path:        "logging.file",
		Type:        TypeString,
		Default:     "",
		Description: "Log file path (empty for stderr)",
		Scope:       ScopeGlobal,
		Tags:        []string{"logging"},
	})
}
