package assist

import (
	"fmt"
	"strings"
	"sync"

	"github.com/quillworks/quill/internal/ai"
	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/config/notify"
	"github.com/quillworks/quill/internal/config/registry"
	"github.com/quillworks/quill/internal/override"
	"github.com/quillworks/quill/internal/secret"
)

// Event is the change signal a Resolver raises to subscribers.
type Event int

const (
	// ActionsChanged fires when a quick-fix or rewrite list changed.
	ActionsChanged Event = iota

	// ModelParamsChanged fires when model, token, temperature, provider
	// or proxy settings changed.
	ModelParamsChanged

	// SystemPromptChanged fires when the system prompt changed.
	SystemPromptChanged

	// CredentialsChanged fires when a stored API key or the proxy
	// endpoint changed; cached clients must not be reused.
	CredentialsChanged
)

// DiagnosticFunc receives user-visible configuration problems.
type DiagnosticFunc func(message string)

// ConfigError reports an invalid configuration combination.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// GenerationConfig is the resolved set of generation parameters.
type GenerationConfig struct {
	Provider        string
	Model           string
	IsCustomModel   bool
	MaxTokens       int
	Temperature     float64
	ReasoningEffort string
	ProxyURL        string
}

// Handle unsubscribes a resolver observer.
type Handle struct {
	cancel func()
	once   sync.Once
}

// Unsubscribe removes the observer.
func (h *Handle) Unsubscribe() {
	h.once.Do(h.cancel)
}

// Resolver merges settings, override files, and the secret store into
// single logical configuration values.
type Resolver struct {
	settings *config.Store
	files    *override.Store
	secrets  *secret.Store
	diag     DiagnosticFunc

	mu        sync.Mutex
	observers map[Event]map[int]func()
	nextID    int
	cleanup   []func()
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDiagnostics sets the sink for user-visible configuration problems.
func WithDiagnostics(fn DiagnosticFunc) ResolverOption {
	return func(r *Resolver) {
		r.diag = fn
	}
}

// NewResolver creates a resolver over the three stores, migrates the
// legacy API-key setting, and wires change propagation.
func NewResolver(settings *config.Store, files *override.Store, secrets *secret.Store, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		settings:  settings,
		files:     files,
		secrets:   secrets,
		diag:      func(string) {},
		observers: make(map[Event]map[int]func()),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.migrateLegacyAPIKey(); err != nil {
		return nil, fmt.Errorf("migrating legacy API key: %w", err)
	}

	sub := settings.SubscribePath("writing", func(c notify.Change) {
		for _, ev := range classifySettingChange(c.Path) {
			r.emit(ev)
		}
	})
	r.cleanup = append(r.cleanup, sub.Unsubscribe)

	for _, provider := range []string{ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderGemini} {
		s := secrets.Subscribe(secret.APIKeyFor(provider), func() {
			r.emit(CredentialsChanged)
		})
		r.cleanup = append(r.cleanup, s.Unsubscribe)
	}

	return r, nil
}

// WatchFiles starts watching the override directory and routes file
// changes into resolver events. The returned watcher is closed by Close.
func (r *Resolver) WatchFiles() error {
	w := override.NewWatcher(r.files, 0)
	w.OnChange(func(kind override.Kind) {
		switch kind {
		case override.KindSystemPrompt:
			r.emit(SystemPromptChanged)
		default:
			r.emit(ActionsChanged)
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	r.mu.Lock()
	r.cleanup = append(r.cleanup, func() { _ = w.Close() })
	r.mu.Unlock()
	return nil
}

// Close releases all subscriptions held by the resolver.
func (r *Resolver) Close() {
	r.mu.Lock()
	cleanup := r.cleanup
	r.cleanup = nil
	r.mu.Unlock()

	for _, fn := range cleanup {
		fn()
	}
}

// Subscribe registers an observer for one event kind.
func (r *Resolver) Subscribe(ev Event, fn func()) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.observers[ev] == nil {
		r.observers[ev] = make(map[int]func())
	}
	id := r.nextID
	r.nextID++
	r.observers[ev][id] = fn

	return &Handle{cancel: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers[ev], id)
	}}
}

func (r *Resolver) emit(ev Event) {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.observers[ev]))
	for _, fn := range r.observers[ev] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// classifySettingChange maps a changed settings path to resolver events.
// Per-kind paths (writing.languages.<kind>.<key>) classify on the key.
func classifySettingChange(path string) []Event {
	last := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		last = path[i+1:]
	}

	switch last {
	case "quickFixes", "rewriteOptions":
		return []Event{ActionsChanged}
	case "model", "customModel", "maxTokens", "temperature", "reasoningEffort", "provider":
		return []Event{ModelParamsChanged}
	case "proxyUrl":
		// A new endpoint must not reuse a client bound to the old one.
		return []Event{ModelParamsChanged, CredentialsChanged}
	case "systemPrompt":
		return []Event{SystemPromptChanged}
	default:
		return nil
	}
}

// resolveValue looks up a writing setting, preferring per-document-kind
// entries when a kind is given.
func (r *Resolver) resolveValue(docKind, key string) (any, bool) {
	if docKind != "" && docKind != DefaultKey {
		if v, ok := r.settings.LanguageValue("writing", docKind, key); ok {
			return v, true
		}
	}
	return r.settings.Get("writing." + key)
}

func (r *Resolver) resolveString(docKind, key string) string {
	v, ok := r.resolveValue(docKind, key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (r *Resolver) resolveInt(docKind, key string, def int) int {
	v, ok := r.resolveValue(docKind, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func (r *Resolver) resolveFloat(docKind, key string, def float64) float64 {
	v, ok := r.resolveValue(docKind, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// Generation resolves the generation parameters for a document kind.
// The returned error is a ConfigError when a proxy endpoint is set
// without a custom model; no request may be sent in that case.
func (r *Resolver) Generation(docKind string) (GenerationConfig, error) {
	cfg := GenerationConfig{
		Provider:        r.resolveString(docKind, "provider"),
		Model:           strings.TrimSpace(r.resolveString(docKind, "model")),
		MaxTokens:       r.resolveInt(docKind, "maxTokens", registry.DefaultMaxTokens),
		Temperature:     r.resolveFloat(docKind, "temperature", registry.DefaultTemperature),
		ReasoningEffort: r.resolveString(docKind, "reasoningEffort"),
		ProxyURL:        strings.TrimSpace(r.resolveString(docKind, "proxyUrl")),
	}
	if cfg.Provider == "" {
		cfg.Provider = ai.ProviderOpenAI
	}

	if cfg.Model == registry.CustomModelSentinel {
		cfg.Model = strings.TrimSpace(r.resolveString(docKind, "customModel"))
		cfg.IsCustomModel = cfg.Model != ""
	}
	if cfg.Model == "" {
		cfg.Model = registry.DefaultModel
	}

	if cfg.ProxyURL != "" && !cfg.IsCustomModel {
		return cfg, &ConfigError{
			Message: "a proxy endpoint requires a custom model; set writing.model to \"custom\" and fill writing.customModel",
		}
	}
	return cfg, nil
}

// SystemPrompts resolves the system prompt for every configured document
// kind. A non-empty override file replaces the default entry outright;
// per-kind settings entries are unaffected by the file.
func (r *Resolver) SystemPrompts() LanguageConfig[string] {
	def := registry.DefaultSystemPrompt
	if s := strings.TrimSpace(r.resolveString("", "systemPrompt")); s != "" {
		def = s
	}

	text, present, err := r.files.SystemPrompt()
	if err != nil {
		r.diag(fmt.Sprintf("cannot read %s: %v", override.SystemPromptFile, err))
	} else if present {
		def = text
	}

	cfg := NewLanguageConfig(def)
	for _, kind := range r.settings.Languages("writing", "systemPrompt") {
		if v, ok := r.settings.LanguageValue("writing", kind, "systemPrompt"); ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				cfg[kind] = strings.TrimSpace(s)
			}
		}
	}
	return cfg
}

// SystemPrompt resolves the system prompt for one document kind.
func (r *Resolver) SystemPrompt(docKind string) string {
	return r.SystemPrompts().Resolve(docKind)
}

// ActionsRaw resolves the raw action list of one kind for every
// configured document kind. A malformed override file or settings list
// degrades to the next source with a surfaced diagnostic.
func (r *Resolver) ActionsRaw(kind ActionKind) LanguageConfig[[]RawAction] {
	def := r.builtinActions(kind)

	if value, err := r.settings.GetArray(kind.SettingPath()); err == nil {
		if actions, convErr := rawFromAny(value); convErr == nil {
			def = actions
		} else {
			r.diag(fmt.Sprintf("invalid %s setting: %v", kind.SettingPath(), convErr))
		}
	}

	switch entries, present, err := r.fileEntries(kind); {
	case err != nil:
		r.diag(fmt.Sprintf("invalid override file: %v", err))
	case present:
		def = entriesToRaw(entries)
	}

	cfg := NewLanguageConfig(def)
	for _, docKind := range r.settings.Languages("writing", string(kind)) {
		v, ok := r.settings.LanguageValue("writing", docKind, string(kind))
		if !ok {
			continue
		}
		actions, err := rawFromAny(toAnySlice(v))
		if err != nil {
			r.diag(fmt.Sprintf("invalid %s list for %s: %v", kind, docKind, err))
			continue
		}
		cfg[docKind] = actions
	}
	return cfg
}

func (r *Resolver) fileEntries(kind ActionKind) ([]override.Entry, bool, error) {
	if kind == KindQuickFixes {
		return r.files.QuickFixes()
	}
	return r.files.RewriteOptions()
}

func (r *Resolver) builtinActions(kind ActionKind) []RawAction {
	source := registry.DefaultQuickFixes
	if kind == KindRewriteOptions {
		source = registry.DefaultRewriteOptions
	}

	actions := make([]RawAction, 0, len(source))
	for _, entry := range source {
		actions = append(actions, RawAction{
			Title:       entry["title"].(string),
			Description: entry["description"].(string),
			Prompt:      entry["prompt"].(string),
		})
	}
	return actions
}

// Secret returns a stored secret; secret.ErrNotFound if absent.
func (r *Resolver) Secret(key string) (string, error) {
	return r.secrets.Get(key)
}

// SetSecret stores a secret; subscribers to CredentialsChanged are
// notified through the secret store's own change propagation.
func (r *Resolver) SetSecret(key, value string) error {
	return r.secrets.Set(key, value)
}

// APIKey returns the credential for the currently configured provider.
func (r *Resolver) APIKey() (string, error) {
	cfg, _ := r.Generation("")
	return r.secrets.Get(secret.APIKeyFor(cfg.Provider))
}

// SeparatorText returns the configured separator put around generated
// text; empty means one blank line.
func (r *Resolver) SeparatorText() string {
	return r.resolveString("", "separatorText")
}

// AcceptRejectFlow reports whether generated text is reviewed before
// committing.
func (r *Resolver) AcceptRejectFlow() bool {
	v, ok := r.settings.Get("writing.acceptRejectFlow")
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// migrateLegacyAPIKey moves a credential from the deprecated flat
// setting into the secret store and scrubs it from every writable
// layer. Running it again is a no-op.
func (r *Resolver) migrateLegacyAPIKey() error {
	v, ok := r.settings.Get("writing.apiKey")
	if !ok {
		return nil
	}
	legacy, _ := v.(string)
	legacy = strings.TrimSpace(legacy)
	if legacy == "" {
		return nil
	}

	cfg, _ := r.Generation("")
	if err := r.secrets.Set(secret.APIKeyFor(cfg.Provider), legacy); err != nil {
		return err
	}
	return r.settings.Purge("writing.apiKey")
}

// entriesToRaw converts override-file entries to raw actions.
func entriesToRaw(entries []override.Entry) []RawAction {
	actions := make([]RawAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, RawAction{
			Title:       e.Title,
			Description: e.Description,
			Prompt:      e.Prompt,
		})
	}
	return actions
}

// toAnySlice normalizes the slice shapes the settings tree can produce.
func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}
