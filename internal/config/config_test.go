package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quillworks/quill/internal/config/notify"
)

func newTestStore(t *testing.T, userTOML, workspaceTOML string) *Store {
	t.Helper()

	userDir := t.TempDir()
	if userTOML != "" {
		if err := os.WriteFile(filepath.Join(userDir, SettingsFileName), []byte(userTOML), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	opts := []Option{WithUserConfigDir(userDir), WithWatcher(false)}

	if workspaceTOML != "" {
		wsDir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(wsDir, ConfigDirName), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(wsDir, ConfigDirName, SettingsFileName), []byte(workspaceTOML), 0o644); err != nil {
			t.Fatal(err)
		}
		opts = append(opts, WithWorkspaceDir(wsDir))
	}

	s := New(opts...)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStoreDefaults(t *testing.T) {
	s := newTestStore(t, "", "")

	w := s.Writing()
	if w.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", w.Model)
	}
	if w.MaxTokens != 1200 {
		t.Errorf("MaxTokens = %d, want 1200", w.MaxTokens)
	}
	if w.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", w.Temperature)
	}
	if !w.AcceptRejectFlow {
		t.Error("AcceptRejectFlow should default to true")
	}
}

func TestStoreUserOverridesDefaults(t *testing.T) {
	s := newTestStore(t, "[writing]\nmodel = \"gpt-4o-mini\"\nmaxTokens = 500\n", "")

	w := s.Writing()
	if w.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", w.Model)
	}
	if w.MaxTokens != 500 {
		t.Errorf("MaxTokens = %d, want 500", w.MaxTokens)
	}
	// Untouched settings keep their defaults.
	if w.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", w.Temperature)
	}
}

func TestStoreWorkspaceOverridesUser(t *testing.T) {
	s := newTestStore(t,
		"[writing]\nmodel = \"gpt-4o-mini\"\n",
		"[writing]\nmodel = \"gpt-4.1\"\n")

	if got := s.Writing().Model; got != "gpt-4.1" {
		t.Errorf("Model = %q, want gpt-4.1", got)
	}
}

func TestStoreSetGlobalPersists(t *testing.T) {
	userDir := t.TempDir()
	s := New(WithUserConfigDir(userDir), WithWatcher(false))
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Set("writing.model", "gpt-4o-mini", true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(userDir, SettingsFileName))
	if err != nil {
		t.Fatalf("user settings not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("user settings file is empty")
	}

	// A fresh store sees the persisted value.
	s2 := New(WithUserConfigDir(userDir), WithWatcher(false))
	if err := s2.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	if got := s2.Writing().Model; got != "gpt-4o-mini" {
		t.Errorf("reloaded Model = %q, want gpt-4o-mini", got)
	}
}

func TestStorePurgeClearsEveryWritableLayer(t *testing.T) {
	userDir := t.TempDir()
	userFile := filepath.Join(userDir, SettingsFileName)
	if err := os.WriteFile(userFile, []byte("[writing]\napiKey = \"sk-user\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wsDir := t.TempDir()
	wsFile := filepath.Join(wsDir, ConfigDirName, SettingsFileName)
	if err := os.MkdirAll(filepath.Join(wsDir, ConfigDirName), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wsFile, []byte("[writing]\napiKey = \"sk-workspace\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(WithUserConfigDir(userDir), WithWorkspaceDir(wsDir), WithWatcher(false))
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Set("writing.apiKey", "sk-session", false); err != nil {
		t.Fatal(err)
	}

	if err := s.Purge("writing.apiKey"); err != nil {
		t.Fatal(err)
	}

	v, _ := s.Get("writing.apiKey")
	if got, _ := v.(string); got != "" {
		t.Errorf("apiKey = %q after purge", got)
	}
	for _, path := range []string{userFile, wsFile} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "apiKey") {
			t.Errorf("%s still carries the purged setting", path)
		}
	}
}

func TestStoreSetValidates(t *testing.T) {
	s := newTestStore(t, "", "")

	if err := s.Set("writing.temperature", 9.5, false); err == nil {
		t.Error("expected out-of-range temperature to be rejected")
	}
	if err := s.Set("writing.model", 42, false); err == nil {
		t.Error("expected wrong-typed model to be rejected")
	}
}

func TestStoreSessionOverride(t *testing.T) {
	s := newTestStore(t, "[writing]\nmodel = \"gpt-4o-mini\"\n", "")

	if err := s.Set("writing.model", "o3", false); err != nil {
		t.Fatal(err)
	}
	if got := s.Writing().Model; got != "o3" {
		t.Errorf("Model = %q, want session override o3", got)
	}
}

func TestStoreNotifiesOnSet(t *testing.T) {
	s := newTestStore(t, "", "")

	var got []notify.Change
	sub := s.SubscribePath("writing.model", func(c notify.Change) {
		got = append(got, c)
	})
	defer sub.Unsubscribe()

	if err := s.Set("writing.model", "o3", false); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d changes, want 1", len(got))
	}
	if got[0].NewValue != "o3" {
		t.Errorf("NewValue = %v, want o3", got[0].NewValue)
	}
}

func TestStoreLanguages(t *testing.T) {
	s := newTestStore(t, `
[writing.languages.markdown]
systemPrompt = "You are a markdown editor."

[writing.languages.plaintext]
systemPrompt = "You are a plain text editor."

[writing.languages.latex]
maxTokens = 2000
`, "")

	kinds := s.Languages("writing", "systemPrompt")
	if len(kinds) != 2 || kinds[0] != "markdown" || kinds[1] != "plaintext" {
		t.Errorf("Languages = %v, want [markdown plaintext]", kinds)
	}

	val, ok := s.LanguageValue("writing", "markdown", "systemPrompt")
	if !ok || val != "You are a markdown editor." {
		t.Errorf("LanguageValue = %v, %v", val, ok)
	}

	if _, ok := s.LanguageValue("writing", "markdown", "maxTokens"); ok {
		t.Error("markdown should not carry a maxTokens override")
	}
}
