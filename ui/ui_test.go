package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/JeanRibes/piano/music"
	"github.com/JeanRibes/piano/shared"
	charmlog "github.com/charmbracelet/log"
)

type screen struct {
	*Terminal
	flushes int
}

func (s *screen) Flush() { s.flushes++ }

func newScreen() *screen {
	return &screen{Terminal: NewTerminal(io.Discard)}
}

func quiet() *charmlog.Logger { return charmlog.New(io.Discard) }

func TestLines(t *testing.T) {
	tests := []struct {
		name        string
		snap        music.Snapshot
		footer      string
		top, bottom string
	}{
		{"boot", music.Snapshot{Note: music.NoNote}, "", "Piano Ready", DEFAULT_HINT},
		{"live C4", music.Snapshot{Note: 0, Frequency: 261}, "", "Note: C4", "261Hz +0"},
		{"live A4 bent", music.Snapshot{Note: 9, Frequency: 453}, "", "Note: A4", "440Hz +13"},
		{"recording", music.Snapshot{Note: music.NoNote, Mode: music.Recording, Count: 3}, "", "REC 3 notes", DEFAULT_HINT},
		{"recording a note", music.Snapshot{Note: 4, Mode: music.Recording, Count: 1, Frequency: 329}, "", "REC 1 notes", "E4 329Hz +0"},
		{"playing", music.Snapshot{Note: 2, Mode: music.Playing, Count: 7, Frequency: 290}, "", "PLAY 7 notes", "D4 293Hz -3"},
		{"ready with take", music.Snapshot{Note: music.NoNote, Count: 2}, "", "Ready (2)", DEFAULT_HINT},
		{"reply", music.Snapshot{Note: music.NoNote, Count: 2}, "Nice tune!", "Ready (2)", "Nice tune!"},
		{"long reply cut", music.Snapshot{Note: music.NoNote}, "a reply far too long for the lcd", "Piano Ready", "a reply far too "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, bottom := Lines(tt.snap, tt.footer, DEFAULT_HINT)
			if top != tt.top || bottom != tt.bottom {
				t.Errorf("got %q / %q, want %q / %q", top, bottom, tt.top, tt.bottom)
			}
		})
	}
}

func TestPresenterRendersOnlyOnChange(t *testing.T) {
	state := music.NewState(10)
	scr := newScreen()
	p := NewPresenter(state, scr, quiet())
	ctx := context.Background()

	p.Poll(ctx)
	p.Poll(ctx)
	p.Poll(ctx)
	if p.Renders() != 1 || scr.flushes != 1 {
		t.Fatalf("renders %d flushes %d on an unchanged state", p.Renders(), scr.flushes)
	}
	if l := scr.Lines(); !strings.HasPrefix(l[0], "Piano Ready") {
		t.Errorf("screen %q", l)
	}

	state.Lock()
	state.CurrentNote = 0
	state.Unlock()
	p.Poll(ctx)
	p.Poll(ctx)
	if p.Renders() != 2 {
		t.Fatalf("renders %d after a note change", p.Renders())
	}
	if l := scr.Lines(); !strings.HasPrefix(l[0], "Note: C4") || !strings.HasPrefix(l[1], "261Hz +0") {
		t.Errorf("screen %q", l)
	}

	state.SetOffset(200)
	p.Poll(ctx)
	if p.Renders() != 3 {
		t.Fatalf("renders %d after a bend", p.Renders())
	}
}

func TestFooterClearedByRecording(t *testing.T) {
	state := music.NewState(10)
	scr := newScreen()
	p := NewPresenter(state, scr, quiet())
	ctx := context.Background()
	p.SetFooter("Great melody")
	p.Poll(ctx)
	if l := scr.Lines(); !strings.HasPrefix(l[1], "Great melody") {
		t.Fatalf("screen %q", l)
	}
	state.Lock()
	state.Mode = music.Recording
	state.Unlock()
	p.Poll(ctx)
	state.Lock()
	state.Mode = music.Idle
	state.Unlock()
	p.Poll(ctx)
	if l := scr.Lines(); strings.HasPrefix(l[1], "Great melody") {
		t.Errorf("stale reply shown after a new take: %q", l)
	}
}

func TestLoopShowsReplies(t *testing.T) {
	state := music.NewState(10)
	scr := newScreen()
	p := NewPresenter(state, scr, quiet())
	sink := make(chan shared.Message, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Loop(ctx, p, time.Hour, sink, quiet())
		close(done)
	}()
	sink <- shared.Message{Type: shared.RemoteReply, String: "Lovely"}
	deadline := time.After(2 * time.Second)
	for !strings.HasPrefix(scr.Lines()[1], "Lovely") {
		select {
		case <-deadline:
			t.Fatalf("reply never shown: %q", scr.Lines())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestTerminalClipsAndRenders(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.SetCursor(14, 0)
	term.Write("abcdef")
	term.SetCursor(0, 1)
	term.Write("Hz")
	l := term.Lines()
	if l[0] != strings.Repeat(" ", 14)+"ab" {
		t.Errorf("row 0 %q", l[0])
	}
	if !strings.HasPrefix(l[1], "Hz") || len([]rune(l[1])) != COLS {
		t.Errorf("row 1 %q", l[1])
	}
	term.Flush()
	if !strings.Contains(buf.String(), "Hz") {
		t.Errorf("flush wrote %q", buf.String())
	}
}
