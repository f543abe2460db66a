package command

import (
	"context"
	"sort"
	"sync"
)

// Registry manages command registration by exact id. Commands belong
// to named groups so a whole group can be swapped atomically when its
// source (such as the action catalog) is rebuilt.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Handler
	groups   map[string][]string // group -> command ids
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Handler),
		groups:   make(map[string][]string),
	}
}

// Register adds a handler under an id. Re-registering an id replaces
// the previous handler.
func (r *Registry) Register(id string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[id] = h
}

// Unregister removes a command by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commands, id)
}

// ReplaceGroup swaps every command in a group for the given set, under
// a single lock so no caller observes a partially registered group.
func (r *Registry) ReplaceGroup(group string, cmds map[string]Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.groups[group] {
		delete(r.commands, id)
	}

	ids := make([]string, 0, len(cmds))
	for id, h := range cmds {
		r.commands[id] = h
		ids = append(ids, id)
	}
	sort.Strings(ids)
	r.groups[group] = ids
}

// Dispatch executes the command registered under inv.Name.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) Result {
	r.mu.RLock()
	h, ok := r.commands[inv.Name]
	r.mu.RUnlock()

	if !ok {
		return Errorf("unknown command %q", inv.Name)
	}
	return h(ctx, inv)
}

// Has returns true if a command is registered under the id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[id]
	return ok
}

// List returns all registered command ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
