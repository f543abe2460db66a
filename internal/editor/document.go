// Package editor models an in-memory document with anchor-tracked
// regions and visual region treatments.
//
// Regions are anchors rebased on every edit; once established they are
// never recomputed by re-scanning text, so concurrent user edits
// elsewhere in the document cannot make them drift.
package editor

import (
	"fmt"
	"strings"
	"sync"
)

// Range is a half-open byte span [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the span length.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether the offset lies inside the span.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Edit replaces the text in Range with NewText.
type Edit struct {
	Range   Range
	NewText string
}

// Document is an editable text buffer identified by a path-like id and
// classified by a document kind (markdown, latex, plaintext, ...).
type Document struct {
	mu      sync.RWMutex
	id      string
	kind    string
	text    string
	version int
	anchors *Arena
	closed  bool
}

// NewDocument creates a document with the given identity, kind, and
// initial text.
func NewDocument(id, kind, text string) *Document {
	return &Document{
		id:      id,
		kind:    kind,
		text:    text,
		anchors: NewArena(),
	}
}

// ID returns the document identity.
func (d *Document) ID() string {
	return d.id
}

// Kind returns the document kind.
func (d *Document) Kind() string {
	return d.kind
}

// Text returns the full document text.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// Version returns the edit counter.
func (d *Document) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Closed reports whether the document has been closed.
func (d *Document) Closed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Close marks the document closed and invalidates all anchors.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.anchors.invalidateAll()
}

// Anchors returns the document's anchor arena.
func (d *Document) Anchors() *Arena {
	return d.anchors
}

// Slice returns the text inside the range.
func (d *Document) Slice(r Range) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if r.Start < 0 || r.End > len(d.text) || r.Start > r.End {
		return "", fmt.Errorf("range [%d,%d) out of bounds (len %d)", r.Start, r.End, len(d.text))
	}
	return d.text[r.Start:r.End], nil
}

// Apply performs one edit and rebases every anchor across it.
func (d *Document) Apply(edit Edit) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("document %s is closed", d.id)
	}
	r := edit.Range
	if r.Start < 0 || r.End > len(d.text) || r.Start > r.End {
		return fmt.Errorf("edit range [%d,%d) out of bounds (len %d)", r.Start, r.End, len(d.text))
	}

	d.text = d.text[:r.Start] + edit.NewText + d.text[r.End:]
	d.version++
	d.anchors.transform(edit)
	return nil
}

// Insert inserts text at an offset.
func (d *Document) Insert(at int, text string) error {
	return d.Apply(Edit{Range: Range{Start: at, End: at}, NewText: text})
}

// Delete removes the text in a range.
func (d *Document) Delete(r Range) error {
	return d.Apply(Edit{Range: r})
}

// Replace replaces the text in a range.
func (d *Document) Replace(r Range, text string) error {
	return d.Apply(Edit{Range: r, NewText: text})
}

// Lines returns the document text split into lines without terminators.
func (d *Document) Lines() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.Split(d.text, "\n")
}

// Position converts a byte offset to zero-based line and column.
func (d *Document) Position(offset int) (line, col int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if offset > len(d.text) {
		offset = len(d.text)
	}
	for i := 0; i < offset; i++ {
		if d.text[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col
}
