package assist

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog derives the id-stable, per-document-kind action set from the
// resolver's raw action lists. It rebuilds itself on ActionsChanged and
// tells its subscribers the catalog was replaced so commands can be
// re-registered.
type Catalog struct {
	resolver *Resolver

	mu       sync.RWMutex
	byKind   map[ActionKind]LanguageConfig[[]WritingAction]
	byID     map[string]WritingAction
	replaced []func()
	handle   *Handle
}

// NewCatalog builds the catalog and subscribes it to action changes.
func NewCatalog(resolver *Resolver) (*Catalog, error) {
	c := &Catalog{resolver: resolver}
	if err := c.rebuild(); err != nil {
		return nil, err
	}

	c.handle = resolver.Subscribe(ActionsChanged, func() {
		if err := c.rebuild(); err != nil {
			resolver.diag(fmt.Sprintf("rebuilding action catalog: %v", err))
			return
		}
		c.notifyReplaced()
	})
	return c, nil
}

// Close detaches the catalog from the resolver.
func (c *Catalog) Close() {
	if c.handle != nil {
		c.handle.Unsubscribe()
	}
}

// OnReplaced registers a callback run after every successful rebuild.
func (c *Catalog) OnReplaced(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, fn)
}

func (c *Catalog) notifyReplaced() {
	c.mu.RLock()
	fns := make([]func(), len(c.replaced))
	copy(fns, c.replaced)
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// rebuild derives all actions from the resolver's current raw lists.
func (c *Catalog) rebuild() error {
	byKind := make(map[ActionKind]LanguageConfig[[]WritingAction], 2)
	byID := make(map[string]WritingAction)

	for _, kind := range []ActionKind{KindQuickFixes, KindRewriteOptions} {
		raw := c.resolver.ActionsRaw(kind)
		built := make(LanguageConfig[[]WritingAction], len(raw))

		for docKind, entries := range raw {
			actions := make([]WritingAction, 0, len(entries))
			for i, entry := range entries {
				action := WritingAction{
					ID:          ActionID(kind, docKind, i),
					Title:       strings.TrimSpace(entry.Title),
					Description: strings.TrimSpace(entry.Description),
					Prompt:      strings.TrimSpace(entry.Prompt),
				}
				if _, dup := byID[action.ID]; dup {
					return fmt.Errorf("duplicate action id %s", action.ID)
				}
				byID[action.ID] = action
				actions = append(actions, action)
			}
			built[docKind] = actions
		}
		byKind[kind] = built
	}

	c.mu.Lock()
	c.byKind = byKind
	c.byID = byID
	c.mu.Unlock()
	return nil
}

// Actions returns the actions of one kind for a document kind.
func (c *Catalog) Actions(kind ActionKind, docKind string) []WritingAction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byKind[kind].Resolve(docKind)
}

// All returns every action for a document kind, quick fixes first.
func (c *Catalog) All(docKind string) []WritingAction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []WritingAction
	all = append(all, c.byKind[KindQuickFixes].Resolve(docKind)...)
	all = append(all, c.byKind[KindRewriteOptions].Resolve(docKind)...)
	return all
}

// Find returns the action with the given id from the current build.
func (c *Catalog) Find(id string) (WritingAction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	action, ok := c.byID[id]
	return action, ok
}

// IDs returns every action id in the current build, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
