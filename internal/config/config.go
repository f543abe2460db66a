// Package config provides unified access to the Quill configuration system.
//
// Configuration is merged from prioritized layers (built-in defaults, user
// settings, workspace settings, session overrides), validated against the
// settings registry, reloaded live when files change, and exposed through
// change notifications.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/quillworks/quill/internal/config/layer"
	"github.com/quillworks/quill/internal/config/loader"
	"github.com/quillworks/quill/internal/config/notify"
	"github.com/quillworks/quill/internal/config/registry"
	"github.com/quillworks/quill/internal/config/watcher"
)

// SettingsFileName is the name of a Quill settings file.
const SettingsFileName = "settings.toml"

// ConfigDirName is the project-local configuration directory.
const ConfigDirName = ".quill"

// Store provides merged, validated access to Quill settings.
type Store struct {
	mu sync.RWMutex

	layers   *layer.Manager
	registry *registry.Registry
	notifier *notify.Notifier
	watcher  *watcher.Watcher

	userConfigDir      string
	workspaceConfigDir string

	enableWatcher bool
}

// Option configures a Store instance.
type Option func(*Store)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(s *Store) {
		s.userConfigDir = dir
	}
}

// WithWorkspaceDir sets the workspace root; settings are read from its
// .quill subdirectory.
func WithWorkspaceDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.workspaceConfigDir = filepath.Join(dir, ConfigDirName)
		}
	}
}

// WithWatcher enables or disables file watching for live reload.
func WithWatcher(enable bool) Option {
	return func(s *Store) {
		s.enableWatcher = enable
	}
}

// New creates a new Store with the given options.
func New(opts ...Option) *Store {
	s := &Store{
		layers:        layer.NewManager(),
		registry:      registry.NewWithDefaults(),
		notifier:      notify.New(),
		enableWatcher: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.userConfigDir == "" {
		s.userConfigDir = defaultUserConfigDir()
	}

	if s.enableWatcher {
		s.watcher = watcher.New()
		s.watcher.OnChange(s.handleFileChange)
	}

	return s
}

// UserConfigDir returns the directory holding user-level configuration.
func (s *Store) UserConfigDir() string {
	return s.userConfigDir
}

// Registry returns the settings registry.
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// Load loads configuration from all sources and starts the watcher.
func (s *Store) Load(_ context.Context) error {
	s.mu.Lock()

	// Defaults layer from registered settings.
	defaults := layer.NewWithData("defaults", layer.SourceBuiltin, layer.PriorityBuiltin,
		unflatten(s.registry.Defaults()))
	defaults.ReadOnly = true
	s.layers.Add(defaults)

	userPath := filepath.Join(s.userConfigDir, SettingsFileName)
	if err := s.loadFileLayer("user", layer.SourceUser, layer.PriorityUser, userPath); err != nil {
		s.mu.Unlock()
		return err
	}

	var workspacePath string
	if s.workspaceConfigDir != "" {
		workspacePath = filepath.Join(s.workspaceConfigDir, SettingsFileName)
		if err := s.loadFileLayer("workspace", layer.SourceWorkspace, layer.PriorityWorkspace, workspacePath); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	w := s.watcher
	s.mu.Unlock()

	// Start the watcher outside the lock; its callbacks re-acquire it.
	if w != nil {
		if err := w.Watch(userPath); err != nil {
			return err
		}
		if workspacePath != "" {
			if err := w.Watch(workspacePath); err != nil {
				return err
			}
		}
		w.Start()
	}

	return nil
}

// loadFileLayer reads a TOML settings file into a named layer.
// A missing file yields an empty layer so later writes have a home.
func (s *Store) loadFileLayer(name string, source layer.Source, priority int, path string) error {
	data, err := loader.NewTOMLLoader(path).Load()
	if err != nil {
		return fmt.Errorf("loading %s settings: %w", name, err)
	}

	l := layer.NewWithData(name, source, priority, data)
	l.Path = path
	s.layers.Add(l)
	return nil
}

// Close shuts down the configuration system.
func (s *Store) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
}

// Get returns the value at the given path from the merged configuration,
// falling back to the registered default.
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if val, ok := s.layers.EffectiveValue(path); ok {
		return val, true
	}
	if def := s.registry.Default(path); def != nil {
		return def, true
	}
	return nil, false
}

// accessor returns a type-safe accessor over the merged configuration.
func (s *Store) accessor() *registry.Accessor {
	s.mu.RLock()
	merged := s.layers.Merge()
	s.mu.RUnlock()
	return registry.NewAccessor(s.registry, registry.NewMapValueStore(merged))
}

// GetString returns a string value at the given path.
func (s *Store) GetString(path string) (string, error) {
	return s.accessor().GetString(path)
}

// GetInt returns an integer value at the given path.
func (s *Store) GetInt(path string) (int, error) {
	return s.accessor().GetInt(path)
}

// GetFloat returns a float value at the given path.
func (s *Store) GetFloat(path string) (float64, error) {
	return s.accessor().GetFloat(path)
}

// GetBool returns a boolean value at the given path.
func (s *Store) GetBool(path string) (bool, error) {
	return s.accessor().GetBool(path)
}

// GetArray returns an array value at the given path.
func (s *Store) GetArray(path string) ([]any, error) {
	return s.accessor().GetArray(path)
}

// Set updates a setting. Global writes target the user layer and are
// persisted to disk; non-global writes target the in-memory session layer.
func (s *Store) Set(path string, value any, global bool) error {
	if err := s.registry.Validate(path, value); err != nil {
		return fmt.Errorf("setting %s: %w", path, err)
	}

	old, _ := s.Get(path)

	s.mu.Lock()
	if global {
		if err := s.layers.Set("user", path, value); err != nil {
			s.mu.Unlock()
			return err
		}
		if err := s.persistLayer("user"); err != nil {
			s.mu.Unlock()
			return err
		}
	} else {
		s.layers.SetInSession(path, value)
	}
	s.mu.Unlock()

	source := "session"
	if global {
		source = "user"
	}
	s.notifier.NotifySet(path, old, value, source)
	return nil
}

// Delete removes a setting from the user layer (and persists) or from the
// session layer.
func (s *Store) Delete(path string, global bool) error {
	old, _ := s.Get(path)

	s.mu.Lock()
	name := "session"
	if global {
		name = "user"
	}
	if err := s.layers.Delete(name, path); err != nil {
		s.mu.Unlock()
		return err
	}
	if global {
		if err := s.persistLayer("user"); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.notifier.NotifyDelete(path, old, name)
	return nil
}

// Purge removes a setting from every writable layer, persisting the
// file-backed ones. Used to scrub deprecated settings wherever they
// were written.
func (s *Store) Purge(path string) error {
	old, _ := s.Get(path)

	s.mu.Lock()
	var cleared []string
	for _, l := range s.layers.Layers() {
		if l.ReadOnly {
			continue
		}
		if _, ok := s.layers.LayerValue(l.Name, path); !ok {
			continue
		}
		if err := s.layers.Delete(l.Name, path); err != nil {
			s.mu.Unlock()
			return err
		}
		if err := s.persistLayer(l.Name); err != nil {
			s.mu.Unlock()
			return err
		}
		cleared = append(cleared, l.Name)
	}
	s.mu.Unlock()

	for _, name := range cleared {
		s.notifier.NotifyDelete(path, old, name)
	}
	return nil
}

// persistLayer writes a file-backed layer back to its settings file.
// Callers must hold the lock.
func (s *Store) persistLayer(name string) error {
	l := s.layers.Layer(name)
	if l == nil || l.Path == "" {
		return nil
	}

	data, err := toml.Marshal(l.Data)
	if err != nil {
		return fmt.Errorf("encoding user settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.Path, data, 0o644)
}

// Languages returns the document kinds that carry overrides for the given
// settings key, discovered from <section>.languages.<kind>.<key> tables.
// The key is the final path element, e.g. "systemPrompt".
func (s *Store) Languages(section, key string) []string {
	s.mu.RLock()
	merged := s.layers.Merge()
	s.mu.RUnlock()

	raw, ok := layer.GetByPath(merged, section+".languages")
	if !ok {
		return nil
	}
	tables, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	var kinds []string
	for kind, val := range tables {
		table, ok := val.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := table[key]; ok {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// LanguageValue returns the per-document-kind override for a key, if any.
func (s *Store) LanguageValue(section, kind, key string) (any, bool) {
	s.mu.RLock()
	merged := s.layers.Merge()
	s.mu.RUnlock()

	return layer.GetByPath(merged, section+".languages."+kind+"."+key)
}

// Subscribe registers an observer for all configuration changes.
func (s *Store) Subscribe(observer notify.Observer) *notify.Subscription {
	return s.notifier.Subscribe(observer)
}

// SubscribePath registers an observer for changes under a path.
func (s *Store) SubscribePath(path string, observer notify.Observer) *notify.Subscription {
	return s.notifier.SubscribePath(path, observer)
}

// handleFileChange reloads the layer owning a changed settings file and
// notifies observers of every path whose effective value changed.
func (s *Store) handleFileChange(event watcher.Event) {
	s.mu.Lock()

	var target *layer.Layer
	for _, l := range s.layers.Layers() {
		if l.Path == event.Path {
			target = l
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return
	}

	oldData := target.Clone().Data

	data, err := loader.NewTOMLLoader(event.Path).Load()
	if err != nil {
		// A half-written or broken file keeps the previous values.
		s.mu.Unlock()
		return
	}
	if data == nil {
		data = make(map[string]any)
	}
	if err := s.layers.Update(target.Name, data); err != nil {
		s.mu.Unlock()
		return
	}
	source := target.Name
	s.mu.Unlock()

	added, modified, removed := layer.DiffMaps(oldData, data)
	for _, path := range added {
		val, _ := s.Get(path)
		s.notifier.NotifySet(path, nil, val, source)
	}
	for _, path := range modified {
		val, _ := s.Get(path)
		s.notifier.NotifySet(path, nil, val, source)
	}
	for _, path := range removed {
		val, _ := s.Get(path)
		s.notifier.NotifyDelete(path, val, source)
	}
}

// unflatten converts dot-separated keys into a nested map.
func unflatten(flat map[string]any) map[string]any {
	nested := make(map[string]any)
	for path, val := range flat {
		layer.SetByPath(nested, path, val)
	}
	return nested
}

// defaultUserConfigDir returns the default user configuration directory.
func defaultUserConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "quill")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "quill")
}
