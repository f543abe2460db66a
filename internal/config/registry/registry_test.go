package registry

import (
	"errors"
	"testing"
)

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	s := Setting{Path: "writing.model", Type: TypeString, Default: "gpt-4o"}
	if err := r.Register(s); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(s); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate register error = %v", err)
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewWithDefaults()

	for _, path := range []string{
		"writing.provider",
		"writing.model",
		"writing.customModel",
		"writing.maxTokens",
		"writing.temperature",
		"writing.proxyUrl",
		"writing.systemPrompt",
		"writing.quickFixes",
		"writing.rewriteOptions",
		"writing.separatorText",
		"writing.acceptRejectFlow",
		"writing.apiKey",
		"logging.level",
	} {
		if !r.Has(path) {
			t.Errorf("default setting %s not registered", path)
		}
	}

	if got := r.Default("writing.model"); got != DefaultModel {
		t.Errorf("Default(writing.model) = %v", got)
	}

	deprecated := r.Deprecated()
	if len(deprecated) != 1 || deprecated[0].Path != "writing.apiKey" {
		t.Errorf("Deprecated() = %v", deprecated)
	}
}

func TestSettingValidation(t *testing.T) {
	r := NewWithDefaults()

	tests := []struct {
		path    string
		value   any
		wantErr bool
	}{
		{"writing.temperature", 0.7, false},
		{"writing.temperature", 2.5, true},
		{"writing.temperature", "hot", true},
		{"writing.maxTokens", 100, false},
		{"writing.maxTokens", 0, true},
		{"writing.provider", "anthropic", false},
		{"writing.provider", "bedrock", true},
		{"writing.acceptRejectFlow", true, false},
		{"writing.acceptRejectFlow", "yes", true},
		{"some.unknown.setting", 42, false}, // unknown settings pass
	}

	for _, tt := range tests {
		err := r.Validate(tt.path, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%s, %v) error = %v, wantErr %v", tt.path, tt.value, err, tt.wantErr)
		}
	}
}

func TestAccessorFallsBackToDefault(t *testing.T) {
	r := NewWithDefaults()
	a := NewAccessor(r, NewMapValueStore(map[string]any{
		"writing": map[string]any{"model": "o3-mini"},
	}))

	model, err := a.GetString("writing.model")
	if err != nil || model != "o3-mini" {
		t.Errorf("GetString(writing.model) = %q, %v", model, err)
	}

	// Absent from the store: registry default applies.
	maxTokens, err := a.GetInt("writing.maxTokens")
	if err != nil || maxTokens != DefaultMaxTokens {
		t.Errorf("GetInt(writing.maxTokens) = %d, %v", maxTokens, err)
	}

	if _, err := a.GetString("writing.unregistered"); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("unregistered setting error = %v", err)
	}
}

func TestAccessorTypeErrors(t *testing.T) {
	r := NewWithDefaults()
	a := NewAccessor(r, NewMapValueStore(map[string]any{
		"writing": map[string]any{"maxTokens": "lots"},
	}))

	_, err := a.GetInt("writing.maxTokens")
	var typeErr *TypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("GetInt error = %v, want TypeError", err)
	}
	if typeErr.Path != "writing.maxTokens" {
		t.Errorf("TypeError.Path = %q", typeErr.Path)
	}
}

func TestAccessorNumericCoercion(t *testing.T) {
	// TOML integers arrive as int64, temperatures may arrive as ints.
	a := NewAccessor(NewWithDefaults(), NewMapValueStore(map[string]any{
		"writing": map[string]any{"maxTokens": int64(800), "temperature": 1},
	}))

	if got, err := a.GetInt("writing.maxTokens"); err != nil || got != 800 {
		t.Errorf("GetInt = %d, %v", got, err)
	}
	if got, err := a.GetFloat("writing.temperature"); err != nil || got != 1.0 {
		t.Errorf("GetFloat = %v, %v", got, err)
	}
}
