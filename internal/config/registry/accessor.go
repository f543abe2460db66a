package registry

import (
	"errors"
	"fmt"
)

// ErrSettingNotFound is returned when a setting is not registered and
// has no stored value.
var ErrSettingNotFound = errors.New("setting not found")

// TypeError describes a stored value whose type does not match the
// setting definition.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("setting %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// ValueStore is the interface for accessing raw configuration values.
type ValueStore interface {
	// GetValue returns the value at the given path.
	// Returns nil, false if the path doesn't exist.
	GetValue(path string) (any, bool)
}

// Accessor provides type-safe access to configuration values.
// It wraps a value store (typically a merged layer map) and uses the
// registry for defaults.
type Accessor struct {
	registry *Registry
	values   ValueStore
}

// NewAccessor creates a new type-safe accessor.
func NewAccessor(registry *Registry, values ValueStore) *Accessor {
	return &Accessor{
		registry: registry,
		values:   values,
	}
}

// Get returns the raw value at the given path.
// If the value is not set, returns the default from the registry.
// Returns ErrSettingNotFound if the setting is not registered.
func (a *Accessor) Get(path string) (any, error) {
	if val, ok := a.values.GetValue(path); ok {
		return val, nil
	}

	setting := a.registry.Get(path)
	if setting == nil {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, path)
	}

	return setting.Default, nil
}

// GetString returns a string value at the given path.
func (a *Accessor) GetString(path string) (string, error) {
	val, err := a.Get(path)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}

	s, ok := val.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: fmt.Sprintf("%T", val)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (a *Accessor) GetInt(path string) (int, error) {
	val, err := a.Get(path)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, nil
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, &TypeError{Path: path, Expected: "integer", Actual: fmt.Sprintf("%T", val)}
	}
}

// GetFloat returns a float value at the given path.
func (a *Accessor) GetFloat(path string) (float64, error) {
	val, err := a.Get(path)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, &TypeError{Path: path, Expected: "number", Actual: fmt.Sprintf("%T", val)}
	}
}

// GetBool returns a boolean value at the given path.
func (a *Accessor) GetBool(path string) (bool, error) {
	val, err := a.Get(path)
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, nil
	}

	b, ok := val.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "boolean", Actual: fmt.Sprintf("%T", val)}
	}
	return b, nil
}

// GetArray returns an array value at the given path. Values registered
// as []map[string]any defaults are normalized to []any.
func (a *Accessor) GetArray(path string) ([]any, error) {
	val, err := a.Get(path)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}

	switch v := val.(type) {
	case []any:
		return v, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return nil, &TypeError{Path: path, Expected: "array", Actual: fmt.Sprintf("%T", val)}
	}
}

// MapValueStore wraps a nested map as a ValueStore.
type MapValueStore struct {
	data map[string]any
}

// NewMapValueStore creates a ValueStore from a nested map.
func NewMapValueStore(data map[string]any) *MapValueStore {
	return &MapValueStore{data: data}
}

// GetValue returns the value at the given dot-separated path.
func (s *MapValueStore) GetValue(path string) (any, bool) {
	return getByPath(s.data, path)
}

// getByPath retrieves a value from a nested map using a dot-separated path.
func getByPath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}

	current := any(data)
	for _, part := range splitPath(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, exists := m[part]
		if !exists {
			return nil, false
		}
		current = val
	}

	return current, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}
