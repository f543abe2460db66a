package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillworks/quill/internal/assist"
	"github.com/quillworks/quill/internal/editor"
)

// RetryPrompter asks the user whether to retry a truncated completion
// without the token cap. It runs while the session is awaiting the
// choice; returning false discards the request.
type RetryPrompter func(ctx context.Context) bool

// NotifyFunc surfaces a failure message to the user.
type NotifyFunc func(message string)

// Transform rewrites the user prompt before submission. Returning an
// error falls back to the untransformed prompt.
type Transform func(actionID, prompt, text string) (string, error)

// Manager owns the live sessions, one per document, and the per-document
// visual overlays.
type Manager struct {
	resolver  *assist.Resolver
	catalog   *assist.Catalog
	completer Completer
	retry     RetryPrompter
	notifyFn  NotifyFunc
	transform Transform

	mu       sync.Mutex
	sessions map[string]*Session
	overlays map[string]*editor.Overlay
	active   string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRetryPrompter sets the uncapped-retry confirmation. The default
// declines every retry.
func WithRetryPrompter(p RetryPrompter) ManagerOption {
	return func(m *Manager) {
		m.retry = p
	}
}

// WithNotify sets the sink for user-visible failure messages.
func WithNotify(fn NotifyFunc) ManagerOption {
	return func(m *Manager) {
		m.notifyFn = fn
	}
}

// WithTransform installs a prompt transform, such as a user script.
func WithTransform(t Transform) ManagerOption {
	return func(m *Manager) {
		m.transform = t
	}
}

// NewManager creates a session manager.
func NewManager(resolver *assist.Resolver, catalog *assist.Catalog, completer Completer, opts ...ManagerOption) *Manager {
	m := &Manager{
		resolver:  resolver,
		catalog:   catalog,
		completer: completer,
		retry:     func(context.Context) bool { return false },
		notifyFn:  func(string) {},
		sessions:  make(map[string]*Session),
		overlays:  make(map[string]*editor.Overlay),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetActive records the document the user is currently viewing. Accept
// and reject only mutate the active document.
func (m *Manager) SetActive(doc *editor.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc == nil {
		m.active = ""
		return
	}
	m.active = doc.ID()
}

// isActive reports whether the document is the one the user is viewing.
func (m *Manager) isActive(doc *editor.Document) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != "" && m.active == doc.ID()
}

// Invoke starts a rewrite for the given action id over the selection.
// A live session on the same document is torn down first; its visuals
// are removed and no text is mutated.
func (m *Manager) Invoke(ctx context.Context, doc *editor.Document, actionID string, selection editor.Range) (*Session, error) {
	action, ok := m.catalog.Find(actionID)
	if !ok {
		return nil, fmt.Errorf("unknown action %s", actionID)
	}

	// No request is sent on an invalid model/proxy combination.
	if _, err := m.resolver.Generation(doc.Kind()); err != nil {
		m.notifyFn(err.Error())
		return nil, err
	}

	m.mu.Lock()
	prior := m.sessions[doc.ID()]
	delete(m.sessions, doc.ID())
	m.mu.Unlock()

	if prior != nil {
		prior.teardown()
	}

	s, err := newSession(m, doc, action.ID, action.Prompt, selection)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[doc.ID()] = s
	m.mu.Unlock()

	go s.run(ctx)
	return s, nil
}

// Session returns the live session for a document, if any.
func (m *Manager) Session(doc *editor.Document) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[doc.ID()]
	return s, ok
}

// Accept commits the active document's inserted rewrite. Without an
// Inserted session on the active document this is a no-op, so duplicate
// affordance triggers are harmless.
func (m *Manager) Accept() error {
	if s := m.activeInserted(); s != nil {
		return s.Accept()
	}
	return nil
}

// Reject discards the active document's inserted rewrite.
func (m *Manager) Reject() error {
	if s := m.activeInserted(); s != nil {
		return s.Reject()
	}
	return nil
}

func (m *Manager) activeInserted() *Session {
	m.mu.Lock()
	s, ok := m.sessions[m.active]
	m.mu.Unlock()

	if !ok || s.State() != StateInserted {
		return nil
	}
	return s
}

// Overlay returns the visual overlay of a document.
func (m *Manager) Overlay(doc *editor.Document) *editor.Overlay {
	return m.overlayFor(doc)
}

func (m *Manager) overlayFor(doc *editor.Document) *editor.Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.overlays[doc.ID()]
	if !ok {
		o = editor.NewOverlay()
		m.overlays[doc.ID()] = o
	}
	return o
}

// release drops a finished session from the registry.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.doc.ID()] == s {
		delete(m.sessions, s.doc.ID())
	}
}

// userPrompt assembles the submitted prompt, routing through the
// installed transform when one is set. A transform failure is surfaced
// and the plain prompt is used.
func (m *Manager) userPrompt(actionID, prompt, text string) string {
	if m.transform != nil {
		out, err := m.transform(actionID, prompt, text)
		if err == nil {
			return out
		}
		m.notify(fmt.Sprintf("prompt transform failed: %v", err))
	}
	return prompt + "\n\n" + text
}

func (m *Manager) retryPrompt(ctx context.Context) bool {
	return m.retry(ctx)
}

func (m *Manager) notify(message string) {
	m.notifyFn(message)
}
