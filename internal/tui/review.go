// Package tui renders the accept/reject review of a rewrite in the
// terminal.
package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/quillworks/quill/internal/editor"
)

// Verdict is the user's decision on an inserted rewrite.
type Verdict uint8

const (
	// VerdictPending leaves the rewrite in place, undecided.
	VerdictPending Verdict = iota
	// VerdictAccept commits the rewrite.
	VerdictAccept
	// VerdictReject discards the rewrite.
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	default:
		return "unknown"
	}
}

var (
	baseStyle     = tcell.StyleDefault
	removalStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed).StrikeThrough(true)
	additionStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	barStyle      = tcell.StyleDefault.Reverse(true)
)

// Review displays a document with the original region struck through
// and the generated region highlighted, and collects a verdict.
type Review struct {
	screen  tcell.Screen
	topLine int
}

// NewReview creates a review bound to a real terminal screen.
func NewReview() (*Review, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Review{screen: screen}, nil
}

// NewReviewWithScreen creates a review over a caller-supplied screen.
func NewReviewWithScreen(screen tcell.Screen) *Review {
	return &Review{screen: screen}
}

// Run shows the review until the user decides. The document is not
// mutated; the caller applies the verdict.
func (r *Review) Run(doc *editor.Document, original, generated editor.Range) (Verdict, error) {
	if err := r.screen.Init(); err != nil {
		return VerdictPending, err
	}
	defer r.screen.Fini()

	for {
		r.draw(doc, original, generated)

		switch ev := r.screen.PollEvent().(type) {
		case *tcell.EventResize:
			r.screen.Sync()
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEnter || ev.Rune() == 'a' || ev.Rune() == 'y':
				return VerdictAccept, nil
			case ev.Key() == tcell.KeyEscape || ev.Rune() == 'r' || ev.Rune() == 'n':
				return VerdictReject, nil
			case ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
				return VerdictPending, nil
			case ev.Key() == tcell.KeyUp || ev.Rune() == 'k':
				if r.topLine > 0 {
					r.topLine--
				}
			case ev.Key() == tcell.KeyDown || ev.Rune() == 'j':
				r.topLine++
			}
		}
	}
}

// draw renders the visible document slice plus the key bar.
func (r *Review) draw(doc *editor.Document, original, generated editor.Range) {
	r.screen.Clear()
	width, height := r.screen.Size()
	if height < 2 || width == 0 {
		r.screen.Show()
		return
	}
	body := height - 1

	lines := doc.Lines()
	if r.topLine >= len(lines) {
		r.topLine = len(lines) - 1
	}
	if r.topLine < 0 {
		r.topLine = 0
	}

	offset := 0
	for i := 0; i < r.topLine && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}

	for row := 0; row < body && r.topLine+row < len(lines); row++ {
		line := lines[r.topLine+row]
		col := 0
		for _, ch := range line {
			if col >= width {
				break
			}
			r.screen.SetContent(col, row, ch, nil, r.styleAt(offset, original, generated))
			offset += len(string(ch))
			col++
		}
		offset++ // the newline
	}

	r.drawBar(width, height-1)
	r.screen.Show()
}

func (r *Review) styleAt(offset int, original, generated editor.Range) tcell.Style {
	switch {
	case original.Contains(offset):
		return removalStyle
	case generated.Contains(offset):
		return additionStyle
	default:
		return baseStyle
	}
}

func (r *Review) drawBar(width, row int) {
	text := fmt.Sprintf(" %s  %s  %s  %s ",
		"[a/enter] accept", "[r/esc] reject", "[q] keep pending", "[j/k] scroll")
	col := 0
	for _, ch := range text {
		if col >= width {
			break
		}
		r.screen.SetContent(col, row, ch, nil, barStyle)
		col++
	}
	for ; col < width; col++ {
		r.screen.SetContent(col, row, ' ', nil, barStyle)
	}
}
