package editor

import "sync"

// anchor is a tracked span. An insertion exactly at the start edge
// stays outside the span. The end edge behaves the same unless the
// anchor was created growing, in which case text appended at the end
// joins the span.
type anchor struct {
	start   int
	end     int
	growEnd bool
	valid   bool
}

// AnchorID refers to a tracked span in an Arena.
type AnchorID int

// Arena owns the anchors of one document and rebases them on every
// edit applied to it.
type Arena struct {
	mu      sync.Mutex
	anchors map[AnchorID]*anchor
	nextID  AnchorID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{anchors: make(map[AnchorID]*anchor)}
}

// Create starts tracking a span and returns its id. Insertions at
// either edge stay outside the span.
func (a *Arena) Create(r Range) AnchorID {
	return a.create(r, false)
}

// CreateGrowing starts tracking a span whose end edge absorbs
// insertions, so manual edits appended to the region stay inside it.
func (a *Arena) CreateGrowing(r Range) AnchorID {
	return a.create(r, true)
}

func (a *Arena) create(r Range, growEnd bool) AnchorID {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.anchors[id] = &anchor{start: r.Start, end: r.End, growEnd: growEnd, valid: true}
	return id
}

// Resolve returns the current span of an anchor. The second return is
// false when the anchor was released, invalidated, or its span was
// deleted by an edit.
func (a *Arena) Resolve(id AnchorID) (Range, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	anc, ok := a.anchors[id]
	if !ok || !anc.valid {
		return Range{}, false
	}
	return Range{Start: anc.start, End: anc.end}, true
}

// Release stops tracking an anchor. Releasing an unknown id is a no-op.
func (a *Arena) Release(id AnchorID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.anchors, id)
}

// transform rebases all anchors across one edit.
func (a *Arena) transform(edit Edit) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, anc := range a.anchors {
		if !anc.valid {
			continue
		}

		// An edit that swallows the whole span invalidates the anchor;
		// the tracked text no longer exists.
		if edit.Range.Start <= anc.start && edit.Range.End >= anc.end && edit.Range.Len() > 0 {
			anc.valid = false
			continue
		}

		anc.start = transformOffset(anc.start, edit, true)
		anc.end = transformOffset(anc.end, edit, anc.growEnd)
		if anc.start > anc.end {
			anc.valid = false
		}
	}
}

func (a *Arena) invalidateAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, anc := range a.anchors {
		anc.valid = false
	}
}

// transformOffset rebases one offset across an edit. biasRight decides
// where an insertion landing exactly on the offset leaves it: pushed
// past the new text, or staying put with the new text after it.
func transformOffset(offset int, edit Edit, biasRight bool) int {
	isInsert := edit.Range.Len() == 0
	if edit.Range.End < offset || (edit.Range.End == offset && (!isInsert || biasRight)) {
		return offset - edit.Range.Len() + len(edit.NewText)
	}

	if edit.Range.Start >= offset {
		return offset
	}

	// Edit spans the offset: land at the end of the new text.
	return edit.Range.Start + len(edit.NewText)
}
