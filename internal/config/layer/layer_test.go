package layer

import (
	"testing"
)

func TestManagerPrecedence(t *testing.T) {
	m := NewManager()
	m.Add(NewWithData("defaults", SourceBuiltin, PriorityBuiltin, map[string]any{
		"writing": map[string]any{"model": "gpt-4o", "temperature": 0.3},
	}))
	m.Add(NewWithData("user", SourceUser, PriorityUser, map[string]any{
		"writing": map[string]any{"model": "gpt-4o-mini"},
	}))

	val, ok := m.EffectiveValue("writing.model")
	if !ok || val != "gpt-4o-mini" {
		t.Errorf("EffectiveValue(writing.model) = %v, want gpt-4o-mini", val)
	}

	// Value absent from the user layer falls through to defaults.
	val, ok = m.EffectiveValue("writing.temperature")
	if !ok || val != 0.3 {
		t.Errorf("EffectiveValue(writing.temperature) = %v, want 0.3", val)
	}
}

func TestManagerSessionOverridesAll(t *testing.T) {
	m := NewManager()
	m.Add(NewWithData("user", SourceUser, PriorityUser, map[string]any{
		"writing": map[string]any{"model": "gpt-4o"},
	}))
	m.SetInSession("writing.model", "o3-mini")

	val, _ := m.EffectiveValue("writing.model")
	if val != "o3-mini" {
		t.Errorf("session layer did not win: got %v", val)
	}

	if name := m.WhichLayer("writing.model"); name != "session" {
		t.Errorf("WhichLayer = %q, want session", name)
	}
}

func TestManagerReadOnlyLayer(t *testing.T) {
	m := NewManager()
	l := NewWithData("defaults", SourceBuiltin, PriorityBuiltin, map[string]any{})
	l.ReadOnly = true
	m.Add(l)

	if err := m.Set("defaults", "writing.model", "x"); err == nil {
		t.Error("Set on read-only layer should fail")
	}
}

func TestManagerUpdateInvalidatesCache(t *testing.T) {
	m := NewManager()
	m.Add(NewWithData("user", SourceUser, PriorityUser, map[string]any{
		"writing": map[string]any{"model": "a"},
	}))
	if val, _ := m.EffectiveValue("writing.model"); val != "a" {
		t.Fatalf("initial value = %v", val)
	}

	if err := m.Update("user", map[string]any{
		"writing": map[string]any{"model": "b"},
	}); err != nil {
		t.Fatal(err)
	}
	if val, _ := m.EffectiveValue("writing.model"); val != "b" {
		t.Errorf("value after Update = %v, want b", val)
	}
}

func TestDeepMergeNestedMaps(t *testing.T) {
	dst := map[string]any{
		"writing": map[string]any{
			"model": "a",
			"languages": map[string]any{
				"markdown": map[string]any{"systemPrompt": "md"},
			},
		},
	}
	src := map[string]any{
		"writing": map[string]any{
			"languages": map[string]any{
				"latex": map[string]any{"systemPrompt": "tex"},
			},
		},
	}

	out := DeepMerge(dst, src)
	if v, _ := GetByPath(out, "writing.model"); v != "a" {
		t.Errorf("model lost in merge: %v", v)
	}
	if v, _ := GetByPath(out, "writing.languages.markdown.systemPrompt"); v != "md" {
		t.Errorf("markdown override lost in merge: %v", v)
	}
	if v, _ := GetByPath(out, "writing.languages.latex.systemPrompt"); v != "tex" {
		t.Errorf("latex override not merged: %v", v)
	}
}

func TestDeepMergeSlicesReplace(t *testing.T) {
	dst := map[string]any{"writing": map[string]any{"quickFixes": []any{"a", "b"}}}
	src := map[string]any{"writing": map[string]any{"quickFixes": []any{"c"}}}

	out := DeepMerge(dst, src)
	v, _ := GetByPath(out, "writing.quickFixes")
	list, ok := v.([]any)
	if !ok || len(list) != 1 || list[0] != "c" {
		t.Errorf("slices should replace, not merge: %v", v)
	}
}

func TestPathHelpers(t *testing.T) {
	data := map[string]any{}
	SetByPath(data, "writing.languages.markdown.systemPrompt", "md")

	if v, ok := GetByPath(data, "writing.languages.markdown.systemPrompt"); !ok || v != "md" {
		t.Errorf("GetByPath after SetByPath = %v, %v", v, ok)
	}
	if _, ok := GetByPath(data, "writing.languages.latex"); ok {
		t.Error("GetByPath found nonexistent path")
	}
	if !DeleteByPath(data, "writing.languages.markdown.systemPrompt") {
		t.Error("DeleteByPath failed to delete existing path")
	}
	if DeleteByPath(data, "writing.languages.markdown.systemPrompt") {
		t.Error("DeleteByPath deleted already-deleted path")
	}
}

func TestDiffMaps(t *testing.T) {
	old := map[string]any{
		"writing": map[string]any{"model": "a", "proxyUrl": "http://p"},
	}
	updated := map[string]any{
		"writing": map[string]any{"model": "b", "temperature": 0.5},
	}

	added, modified, removed := DiffMaps(old, updated)
	if len(added) != 1 || added[0] != "writing.temperature" {
		t.Errorf("added = %v", added)
	}
	if len(modified) != 1 || modified[0] != "writing.model" {
		t.Errorf("modified = %v", modified)
	}
	if len(removed) != 1 || removed[0] != "writing.proxyUrl" {
		t.Errorf("removed = %v", removed)
	}
}
