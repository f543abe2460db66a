// Package session orchestrates one user-visible rewrite: call the
// completion provider, insert the generated text next to the original
// selection, and reconcile the two regions on accept or reject.
//
// At most one session is live per document. All transitions end in a
// defined state; every error path returns to Idle with the visual
// artifacts disposed.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/ai"
	"github.com/quillworks/quill/internal/editor"
)

// State is the lifecycle phase of a session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingRetryChoice
	StateInserted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateAwaitingRetryChoice:
		return "awaiting-retry-choice"
	case StateInserted:
		return "inserted"
	default:
		return "unknown"
	}
}

// Completer issues one completion call for a document kind.
type Completer interface {
	Complete(ctx context.Context, docKind, system, user string, ignoreCap bool) (string, error)
}

// Session tracks one rewrite request against one document.
type Session struct {
	id  string
	mgr *Manager
	doc *editor.Document

	mu        sync.Mutex
	state     State
	cancelled bool
	cancel    context.CancelFunc

	actionID     string
	prompt       string
	originalText string

	original  editor.AnchorID
	generated editor.AnchorID
	inserted  editor.AnchorID
	visuals   []editor.TreatmentID
	hasRegion bool
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Document returns the owning document.
func (s *Session) Document() *editor.Document {
	return s.doc
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel discards the pending request's eventual result. No text is
// mutated; the session returns to Idle when the request resolves.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRequesting && s.state != StateAwaitingRetryChoice {
		return
	}
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
}

// newSession captures the selection verbatim and anchors the original
// region.
func newSession(mgr *Manager, doc *editor.Document, actionID, prompt string, selection editor.Range) (*Session, error) {
	text, err := doc.Slice(selection)
	if err != nil {
		return nil, err
	}

	return &Session{
		id:           uuid.NewString(),
		mgr:          mgr,
		doc:          doc,
		state:        StateRequesting,
		actionID:     actionID,
		prompt:       prompt,
		originalText: text,
		original:     doc.Anchors().Create(selection),
	}, nil
}

// run performs the completion call and the follow-up transitions. It is
// the only goroutine touching the session while Requesting.
func (s *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	docKind := s.doc.Kind()
	system := s.mgr.resolver.SystemPrompt(docKind)
	user := s.mgr.userPrompt(s.actionID, s.prompt, s.originalText)

	ignoreCap := false
	for {
		text, err := s.mgr.completer.Complete(ctx, docKind, system, user, ignoreCap)

		s.mu.Lock()
		if s.cancelled {
			// Discard the result unconditionally; nothing was inserted.
			s.finishLocked()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		switch {
		case err == nil:
			s.insert(text)
			return

		case errors.Is(err, ai.ErrTokenLimit) && !ignoreCap:
			s.mu.Lock()
			s.state = StateAwaitingRetryChoice
			s.mu.Unlock()

			if !s.mgr.retryPrompt(ctx) {
				s.mu.Lock()
				s.finishLocked()
				s.mu.Unlock()
				return
			}

			s.mu.Lock()
			if s.cancelled {
				s.finishLocked()
				s.mu.Unlock()
				return
			}
			// One uncapped retry; the persisted settings are untouched.
			s.state = StateRequesting
			ignoreCap = true
			s.mu.Unlock()

		default:
			s.mgr.notify(err.Error())
			s.mu.Lock()
			s.finishLocked()
			s.mu.Unlock()
			return
		}
	}
}

// insert places the generated text after the original region. In
// accept/reject mode both regions stay visible under review treatments;
// in direct mode the text is committed immediately.
func (s *Session) insert(text string) {
	origRange, ok := s.doc.Anchors().Resolve(s.original)
	if !ok || s.doc.Closed() {
		s.mu.Lock()
		s.finishLocked()
		s.mu.Unlock()
		return
	}

	// A configured separator fences the generated text on both sides.
	sep := s.mgr.resolver.SeparatorText()
	lead, trail := "\n\n", "\n"
	if sep != "" {
		lead = "\n" + sep + "\n"
		trail = "\n" + sep + "\n"
	}
	block := lead + text + trail

	if err := s.doc.Insert(origRange.End, block); err != nil {
		s.mgr.notify(err.Error())
		s.mu.Lock()
		s.finishLocked()
		s.mu.Unlock()
		return
	}

	// Review needs a visible view; a document the user is no longer
	// looking at takes the insertion directly.
	if !s.mgr.resolver.AcceptRejectFlow() || !s.mgr.isActive(s.doc) {
		s.mu.Lock()
		s.finishLocked()
		s.mu.Unlock()
		return
	}

	genStart := origRange.End + len(lead)
	s.mu.Lock()
	s.generated = s.doc.Anchors().CreateGrowing(editor.Range{Start: genStart, End: genStart + len(text)})
	s.inserted = s.doc.Anchors().Create(editor.Range{Start: origRange.End, End: origRange.End + len(block)})
	s.hasRegion = true

	overlay := s.mgr.overlayFor(s.doc)
	s.visuals = []editor.TreatmentID{
		overlay.Apply(s.original, editor.TreatmentRemoval),
		overlay.Apply(s.generated, editor.TreatmentAddition),
	}
	s.state = StateInserted
	s.mu.Unlock()
}

// Accept replaces the original text with the generated region's current
// text and removes the inserted block. A session that is not Inserted,
// or whose anchors no longer resolve, is left alone.
func (s *Session) Accept() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInserted || !s.hasRegion {
		return nil
	}

	origRange, okOrig := s.doc.Anchors().Resolve(s.original)
	genRange, okGen := s.doc.Anchors().Resolve(s.generated)
	insRange, okIns := s.doc.Anchors().Resolve(s.inserted)
	if !okOrig || !okGen || !okIns || s.doc.Closed() {
		// Stale regions: guard, not an error.
		s.finishLocked()
		return nil
	}

	// Re-read at accept time so manual edits to the generated text are
	// honored.
	genText, err := s.doc.Slice(genRange)
	if err != nil {
		s.finishLocked()
		return nil
	}

	// The inserted block sits after the original, so removing it first
	// leaves the original range valid.
	if err := s.doc.Delete(insRange); err != nil {
		return err
	}
	if err := s.doc.Replace(origRange, genText); err != nil {
		return err
	}

	s.finishLocked()
	return nil
}

// Reject removes the inserted block and leaves the original untouched.
func (s *Session) Reject() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInserted || !s.hasRegion {
		return nil
	}

	insRange, ok := s.doc.Anchors().Resolve(s.inserted)
	if !ok || s.doc.Closed() {
		s.finishLocked()
		return nil
	}

	if err := s.doc.Delete(insRange); err != nil {
		return err
	}

	s.finishLocked()
	return nil
}

// teardown disposes visuals and anchors without mutating text, for when
// a new invocation supersedes this session.
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
	s.finishLocked()
}

// finishLocked releases anchors and visuals and returns to Idle.
// Callers must hold the lock.
func (s *Session) finishLocked() {
	if len(s.visuals) > 0 {
		s.mgr.overlayFor(s.doc).Dispose(s.visuals...)
		s.visuals = nil
	}
	arena := s.doc.Anchors()
	arena.Release(s.original)
	if s.hasRegion {
		arena.Release(s.generated)
		arena.Release(s.inserted)
		s.hasRegion = false
	}
	s.state = StateIdle
	s.mgr.release(s)
}

// GeneratedText re-reads the generated region, if the session is
// Inserted.
func (s *Session) GeneratedText() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInserted || !s.hasRegion {
		return "", false
	}
	r, ok := s.doc.Anchors().Resolve(s.generated)
	if !ok {
		return "", false
	}
	text, err := s.doc.Slice(r)
	if err != nil {
		return "", false
	}
	return text, true
}

// Regions returns the original and generated spans while Inserted.
func (s *Session) Regions() (original, generated editor.Range, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInserted || !s.hasRegion {
		return editor.Range{}, editor.Range{}, false
	}
	origRange, okOrig := s.doc.Anchors().Resolve(s.original)
	genRange, okGen := s.doc.Anchors().Resolve(s.generated)
	if !okOrig || !okGen {
		return editor.Range{}, editor.Range{}, false
	}
	return origRange, genRange, true
}
