package ui

import (
	"context"
	"fmt"

	"github.com/JeanRibes/piano/music"
	charmlog "github.com/charmbracelet/log"
)

// COLS is the width of the two-line display.
const COLS = 16

const DEFAULT_HINT = "Ctrl = Rec/Play"

// DisplaySink is a character display. It gives no feedback.
type DisplaySink interface {
	Clear()
	SetCursor(col, row int)
	Write(text string)
}

// Flusher is implemented by sinks that buffer a frame until it is complete.
type Flusher interface {
	Flush()
}

type view struct {
	snap   music.Snapshot
	footer string
}

// Presenter renders the shared state on the display, and only touches the
// display when what it would show has changed.
type Presenter struct {
	state  *music.SynthState
	sink   DisplaySink
	logger *charmlog.Logger
	Hint   string

	footer   string
	last     view
	rendered bool
	renders  int
}

func NewPresenter(state *music.SynthState, sink DisplaySink, logger *charmlog.Logger) *Presenter {
	return &Presenter{
		state:  state,
		sink:   sink,
		logger: logger,
		Hint:   DEFAULT_HINT,
	}
}

// SetFooter shows text on the second line while nothing else needs it.
func (p *Presenter) SetFooter(text string) {
	p.footer = text
}

// Renders counts the frames sent to the sink.
func (p *Presenter) Renders() int { return p.renders }

func (p *Presenter) Poll(context.Context) {
	snap := p.state.Snapshot()
	if p.rendered && p.last.snap.Mode != music.Recording && snap.Mode == music.Recording {
		// a new take makes the previous reply stale
		p.footer = ""
	}
	v := view{snap: snap, footer: p.footer}
	if p.rendered && v == p.last {
		return
	}
	top, bottom := Lines(snap, p.footer, p.Hint)
	p.sink.Clear()
	p.sink.SetCursor(0, 0)
	p.sink.Write(top)
	p.sink.SetCursor(0, 1)
	p.sink.Write(bottom)
	if f, ok := p.sink.(Flusher); ok {
		f.Flush()
	}
	p.last = v
	p.rendered = true
	p.renders++
	p.logger.Debug("render", "top", top, "bottom", bottom)
}

// Lines computes both display lines for a snapshot.
func Lines(s music.Snapshot, footer, hint string) (string, string) {
	var top, bottom string
	sounding := music.ValidNote(s.Note)

	switch {
	case s.Mode == music.Recording:
		top = fmt.Sprintf("REC %d notes", s.Count)
	case s.Mode == music.Playing:
		top = fmt.Sprintf("PLAY %d notes", s.Count)
	case sounding:
		top = "Note: " + music.NoteName(s.Note)
	case s.Count > 0:
		top = fmt.Sprintf("Ready (%d)", s.Count)
	default:
		top = "Piano Ready"
	}

	switch {
	case sounding:
		n := music.Notes[s.Note]
		bottom = fmt.Sprintf("%dHz %+d", n.Nominal, music.Deviation(s.Note, s.Frequency))
		if s.Mode != music.Idle {
			bottom = n.Name + " " + bottom
		}
	case footer != "" && s.Mode == music.Idle:
		bottom = footer
	default:
		bottom = hint
	}
	return fit(top), fit(bottom)
}

func fit(s string) string {
	r := []rune(s)
	if len(r) > COLS {
		return string(r[:COLS])
	}
	return s
}
