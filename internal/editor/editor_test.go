package editor

import "testing"

func TestApplyEdits(t *testing.T) {
	d := NewDocument("notes.md", "markdown", "Hello world")

	if err := d.Replace(Range{Start: 6, End: 11}, "there"); err != nil {
		t.Fatal(err)
	}
	if got := d.Text(); got != "Hello there" {
		t.Errorf("text = %q", got)
	}
	if d.Version() != 1 {
		t.Errorf("version = %d", d.Version())
	}

	if err := d.Insert(5, ","); err != nil {
		t.Fatal(err)
	}
	if got := d.Text(); got != "Hello, there" {
		t.Errorf("text = %q", got)
	}

	if err := d.Delete(Range{Start: 0, End: 7}); err != nil {
		t.Fatal(err)
	}
	if got := d.Text(); got != "there" {
		t.Errorf("text = %q", got)
	}
}

func TestApplyOutOfBounds(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "abc")

	if err := d.Delete(Range{Start: 1, End: 9}); err == nil {
		t.Error("out-of-bounds edit should fail")
	}
	if err := d.Insert(-1, "x"); err == nil {
		t.Error("negative offset should fail")
	}
}

func TestAnchorShiftsWithUpstreamEdits(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "one two three")
	id := d.Anchors().Create(Range{Start: 4, End: 7}) // "two"

	// Insertion before the anchor shifts it right.
	if err := d.Insert(0, ">> "); err != nil {
		t.Fatal(err)
	}
	r, ok := d.Anchors().Resolve(id)
	if !ok {
		t.Fatal("anchor lost")
	}
	if got, _ := d.Slice(r); got != "two" {
		t.Errorf("anchored text = %q", got)
	}

	// Deletion before the anchor shifts it left.
	if err := d.Delete(Range{Start: 0, End: 3}); err != nil {
		t.Fatal(err)
	}
	r, _ = d.Anchors().Resolve(id)
	if got, _ := d.Slice(r); got != "two" {
		t.Errorf("anchored text after delete = %q", got)
	}

	// Edits after the anchor leave it alone.
	if err := d.Replace(Range{Start: 8, End: 13}, "3"); err != nil {
		t.Fatal(err)
	}
	r, _ = d.Anchors().Resolve(id)
	if r != (Range{Start: 4, End: 7}) {
		t.Errorf("anchor = %+v", r)
	}
}

func TestAnchorGrowsWithEditsInside(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "abc XY def")
	id := d.Anchors().CreateGrowing(Range{Start: 4, End: 6}) // "XY"

	// An insertion inside the region grows it.
	if err := d.Insert(5, "--"); err != nil {
		t.Fatal(err)
	}
	r, ok := d.Anchors().Resolve(id)
	if !ok {
		t.Fatal("anchor lost")
	}
	if got, _ := d.Slice(r); got != "X--Y" {
		t.Errorf("anchored text = %q", got)
	}

	// A growing anchor absorbs insertions at its end edge; appended
	// manual edits belong to the region.
	if err := d.Insert(r.End, "!"); err != nil {
		t.Fatal(err)
	}
	r, _ = d.Anchors().Resolve(id)
	if got, _ := d.Slice(r); got != "X--Y!" {
		t.Errorf("anchored text = %q", got)
	}
}

func TestAnchorEndExcludesInsertionsByDefault(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "abXYcd")
	id := d.Anchors().Create(Range{Start: 2, End: 4}) // "XY"

	// A default anchor keeps an insertion at its end edge outside.
	if err := d.Insert(4, ".."); err != nil {
		t.Fatal(err)
	}
	r, _ := d.Anchors().Resolve(id)
	if got, _ := d.Slice(r); got != "XY" {
		t.Errorf("anchored text = %q", got)
	}
	if r.End != 4 {
		t.Errorf("end = %d, want 4", r.End)
	}
}

func TestAnchorStartExcludesInsertions(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "abXYcd")
	id := d.Anchors().Create(Range{Start: 2, End: 4}) // "XY"

	// Insertion exactly at the start stays outside the region.
	if err := d.Insert(2, ".."); err != nil {
		t.Fatal(err)
	}
	r, _ := d.Anchors().Resolve(id)
	if got, _ := d.Slice(r); got != "XY" {
		t.Errorf("anchored text = %q", got)
	}
	if r.Start != 4 {
		t.Errorf("start = %d, want 4", r.Start)
	}
}

func TestAnchorInvalidatedByCoveringDelete(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "abc XY def")
	id := d.Anchors().Create(Range{Start: 4, End: 6})

	if err := d.Delete(Range{Start: 2, End: 8}); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Anchors().Resolve(id); ok {
		t.Error("anchor should not resolve after its span was deleted")
	}
}

func TestCloseInvalidatesAnchors(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "abc")
	id := d.Anchors().Create(Range{Start: 0, End: 3})

	d.Close()
	if _, ok := d.Anchors().Resolve(id); ok {
		t.Error("anchor should not resolve on a closed document")
	}
	if err := d.Insert(0, "x"); err == nil {
		t.Error("edits on a closed document should fail")
	}
}

func TestOverlayLifecycle(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "original generated")
	o := NewOverlay()

	orig := d.Anchors().Create(Range{Start: 0, End: 8})
	gen := d.Anchors().Create(Range{Start: 9, End: 18})

	t1 := o.Apply(orig, TreatmentRemoval)
	t2 := o.Apply(gen, TreatmentAddition)
	if o.Count() != 2 {
		t.Fatalf("count = %d", o.Count())
	}

	o.Dispose(t1, t2)
	if o.Count() != 0 {
		t.Errorf("count after dispose = %d", o.Count())
	}
	o.Dispose(t1) // repeated dispose is harmless
}

func TestPosition(t *testing.T) {
	d := NewDocument("a.txt", "plaintext", "ab\ncd\nef")

	tests := []struct {
		offset, line, col int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{7, 2, 1},
	}
	for _, tt := range tests {
		line, col := d.Position(tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("Position(%d) = %d,%d want %d,%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
}
