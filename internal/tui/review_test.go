package tui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/quillworks/quill/internal/editor"
)

func runReview(t *testing.T, sim tcell.SimulationScreen) chan Verdict {
	t.Helper()
	doc := editor.NewDocument("a.md", "markdown", "Hello\n\nHi\n world")
	verdicts := make(chan Verdict, 1)
	go func() {
		v, err := NewReviewWithScreen(sim).Run(doc,
			editor.Range{Start: 0, End: 5},
			editor.Range{Start: 7, End: 9})
		if err != nil {
			t.Error(err)
		}
		verdicts <- v
	}()
	return verdicts
}

func injectAfterInit(sim tcell.SimulationScreen, key tcell.Key, r rune) {
	// Give Run a moment to Init and enter the poll loop.
	time.Sleep(20 * time.Millisecond)
	sim.InjectKey(key, r, tcell.ModNone)
}

func awaitVerdict(t *testing.T, verdicts chan Verdict) Verdict {
	t.Helper()
	select {
	case v := <-verdicts:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("review did not return")
		return VerdictPending
	}
}

func TestReviewVerdictKeys(t *testing.T) {
	cases := []struct {
		name string
		key  tcell.Key
		ch   rune
		want Verdict
	}{
		{"accept rune", tcell.KeyRune, 'a', VerdictAccept},
		{"accept enter", tcell.KeyEnter, 0, VerdictAccept},
		{"reject rune", tcell.KeyRune, 'r', VerdictReject},
		{"reject escape", tcell.KeyEscape, 0, VerdictReject},
		{"keep pending", tcell.KeyRune, 'q', VerdictPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := tcell.NewSimulationScreen("")
			verdicts := runReview(t, sim)
			injectAfterInit(sim, tc.key, tc.ch)
			if got := awaitVerdict(t, verdicts); got != tc.want {
				t.Errorf("verdict = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDrawStylesRegions(t *testing.T) {
	sim := tcell.NewSimulationScreen("")
	if err := sim.Init(); err != nil {
		t.Fatal(err)
	}
	sim.SetSize(40, 10)

	doc := editor.NewDocument("a.md", "markdown", "Hello\n\nHi\n world")
	r := NewReviewWithScreen(sim)
	r.draw(doc, editor.Range{Start: 0, End: 5}, editor.Range{Start: 7, End: 9})

	cells, width, _ := sim.GetContents()

	// "Hello" on row 0 carries the removal style.
	if got := cells[0].Runes[0]; got != 'H' {
		t.Fatalf("cell(0,0) = %q", got)
	}
	if cells[0].Style != removalStyle {
		t.Error("original region should use the removal style")
	}

	// "Hi" on row 2 carries the addition style.
	hi := cells[2*width]
	if got := hi.Runes[0]; got != 'H' {
		t.Fatalf("cell(0,2) = %q", got)
	}
	if hi.Style != additionStyle {
		t.Error("generated region should use the addition style")
	}

	// Text outside both regions keeps the base style.
	world := cells[3*width+1]
	if got := world.Runes[0]; got != 'w' {
		t.Fatalf("cell(1,3) = %q", got)
	}
	if world.Style != baseStyle {
		t.Error("untouched text should use the base style")
	}
}

func TestVerdictString(t *testing.T) {
	if VerdictAccept.String() != "accept" || VerdictReject.String() != "reject" || VerdictPending.String() != "pending" {
		t.Error("unexpected verdict labels")
	}
}
