package layer

import (
	"fmt"
	"sort"
	"sync"
)

// Manager manages configuration layers and provides merged access.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer       // Sorted by priority (ascending)
	merged map[string]any // Cached merged result
	dirty  bool           // Whether merged cache needs refresh
}

// NewManager creates a new layer manager.
func NewManager() *Manager {
	return &Manager{
		layers: make([]*Layer, 0),
		merged: make(map[string]any),
		dirty:  true,
	}
}

// Add adds a layer to the manager.
// Layers are automatically sorted by priority.
func (m *Manager) Add(l *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.layers = append(m.layers, l)
	m.sortLayers()
	m.dirty = true
}

// Remove removes a layer by name.
// Returns true if the layer was found and removed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.dirty = true
			return true
		}
	}
	return false
}

// Layer returns a layer by name.
func (m *Manager) Layer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLayer(name)
}

// BySource returns the first layer with the given source.
func (m *Manager) BySource(source Source) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.layers {
		if l.Source == source {
			return l
		}
	}
	return nil
}

// Layers returns a copy of all layers sorted by priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, len(m.layers))
	copy(result, m.layers)
	return result
}

// Merge combines all layers into a single configuration map.
// Results are cached until a layer is added, removed, or updated.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMap(m.mergedData())
}

// mergedData refreshes the cache if dirty and returns the internal
// reference. Callers must hold the lock.
func (m *Manager) mergedData() map[string]any {
	if m.dirty || m.merged == nil {
		result := make(map[string]any)
		for _, l := range m.layers {
			result = DeepMerge(result, l.Data)
		}
		m.merged = result
		m.dirty = false
	}
	return m.merged
}

// Get returns the effective value for a setting path.
// Returns the value, the layer it came from, and whether it was found.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Search layers from highest to lowest priority
	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		if val, ok := GetByPath(l.Data, path); ok {
			return val, l, true
		}
	}

	return nil, nil, false
}

// EffectiveValue returns the merged value for a setting path.
func (m *Manager) EffectiveValue(path string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return GetByPath(m.mergedData(), path)
}

// Set sets a value in a specific layer.
// Returns an error if the layer is not found or is read-only.
func (m *Manager) Set(layerName, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findLayer(layerName)
	if l == nil {
		return fmt.Errorf("layer not found: %s", layerName)
	}
	if l.ReadOnly {
		return fmt.Errorf("layer is read-only: %s", layerName)
	}
	if l.Data == nil {
		l.Data = make(map[string]any)
	}

	SetByPath(l.Data, path, value)
	m.dirty = true
	return nil
}

// SetInSession sets a value in the session layer.
// Creates the session layer if it doesn't exist.
func (m *Manager) SetInSession(path string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var session *Layer
	for _, l := range m.layers {
		if l.Source == SourceSession {
			session = l
			break
		}
	}

	if session == nil {
		session = New("session", SourceSession, PrioritySession)
		m.layers = append(m.layers, session)
		m.sortLayers()
	}
	if session.Data == nil {
		session.Data = make(map[string]any)
	}

	SetByPath(session.Data, path, value)
	m.dirty = true
}

// Delete removes a value from a specific layer.
func (m *Manager) Delete(layerName, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findLayer(layerName)
	if l == nil {
		return fmt.Errorf("layer not found: %s", layerName)
	}
	if l.ReadOnly {
		return fmt.Errorf("layer is read-only: %s", layerName)
	}

	if DeleteByPath(l.Data, path) {
		m.dirty = true
	}
	return nil
}

// Update replaces a layer's data entirely.
func (m *Manager) Update(name string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findLayer(name)
	if l == nil {
		return fmt.Errorf("layer not found: %s", name)
	}
	if l.ReadOnly {
		return fmt.Errorf("layer is read-only: %s", name)
	}

	l.Data = cloneMap(data)
	m.dirty = true
	return nil
}

// LayerValue returns a value from a specific layer.
func (m *Manager) LayerValue(layerName, path string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := m.findLayer(layerName)
	if l == nil {
		return nil, false
	}
	return GetByPath(l.Data, path)
}

// WhichLayer returns the name of the layer that provides a value.
func (m *Manager) WhichLayer(path string) string {
	_, l, found := m.Get(path)
	if !found {
		return ""
	}
	return l.Name
}

// sortLayers sorts layers by priority (ascending).
func (m *Manager) sortLayers() {
	sort.Slice(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}

// findLayer finds a layer by name (must be called with lock held).
func (m *Manager) findLayer(name string) *Layer {
	for _, l := range m.layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}
