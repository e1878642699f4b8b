package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Terminal emulates a two-line character LCD in a terminal.
type Terminal struct {
	out   io.Writer
	style lipgloss.Style

	mu       sync.Mutex
	rows     [2][]rune
	col, row int
}

func NewTerminal(out io.Writer) *Terminal {
	t := &Terminal{
		out: out,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Foreground(lipgloss.Color("86")).
			Padding(0, 1),
	}
	t.Clear()
	return t
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		t.rows[i] = []rune(strings.Repeat(" ", COLS))
	}
	t.col, t.row = 0, 0
}

func (t *Terminal) SetCursor(col, row int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row < 0 || row >= len(t.rows) || col < 0 || col >= COLS {
		return
	}
	t.col, t.row = col, row
}

// Write puts text at the cursor; characters past the last column are lost,
// like on the real display.
func (t *Terminal) Write(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range text {
		if t.col >= COLS {
			break
		}
		t.rows[t.row][t.col] = r
		t.col++
	}
}

// Lines returns the current content of both rows.
func (t *Terminal) Lines() [2]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return [2]string{string(t.rows[0]), string(t.rows[1])}
}

func (t *Terminal) Flush() {
	lines := t.Lines()
	fmt.Fprintln(t.out, t.style.Render(lines[0]+"\n"+lines[1]))
}

// Discard is a display that shows nothing.
type Discard struct{}

func (Discard) Clear()             {}
func (Discard) SetCursor(int, int) {}
func (Discard) Write(string)       {}
