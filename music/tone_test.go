package music

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
)

func TestLiveNote(t *testing.T) {
	r := newRig(t, 10)
	r.pot.raw = 0
	r.in.Sampler.Poll(r.ctx)
	r.press(0)
	r.in.Tone.Poll(r.ctx)
	if len(r.out.calls) != 1 || r.out.calls[0].hz != Notes[0].Lower {
		t.Fatalf("tone calls %+v, want %d Hz", r.out.calls, Notes[0].Lower)
	}
	s := r.in.State.Snapshot()
	if s.Note != 0 || Deviation(s.Note, s.Frequency) != 0 {
		t.Errorf("snapshot %+v", s)
	}
	r.release(0)
	r.in.Tone.Poll(r.ctx)
	if last := r.out.calls[len(r.out.calls)-1]; last.hz != 0 {
		t.Errorf("release did not mute: %+v", r.out.calls)
	}
}

func TestContinuousBend(t *testing.T) {
	r := newRig(t, 10)
	r.press(9)
	r.in.Tone.Poll(r.ctx)
	r.pot.raw = 1023
	r.in.Sampler.Poll(r.ctx)
	r.in.Tone.Poll(r.ctx)
	r.in.Tone.Poll(r.ctx) // unchanged offset: no new call
	want := []int{428, 453}
	if len(r.out.calls) != len(want) {
		t.Fatalf("tone calls %+v", r.out.calls)
	}
	for i, hz := range want {
		if r.out.calls[i].hz != hz {
			t.Errorf("call %d: %d Hz, want %d", i, r.out.calls[i].hz, hz)
		}
	}
}

func TestBendWithoutNoteIsSilent(t *testing.T) {
	r := newRig(t, 10)
	r.pot.raw = 800
	r.in.Sampler.Poll(r.ctx)
	r.in.Tone.Poll(r.ctx)
	if len(r.out.calls) != 0 {
		t.Fatalf("tone driven without a note: %+v", r.out.calls)
	}
}

func TestToneClamp(t *testing.T) {
	r := newRig(t, 10)
	r.in.Tone.MinHz, r.in.Tone.MaxHz = 300, 400
	tests := []struct{ in, want int }{
		{261, 300},
		{350, 350},
		{523, 400},
	}
	for _, tt := range tests {
		if got := r.in.Tone.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	r.press(11)
	r.in.Tone.Poll(r.ctx)
	if r.out.calls[0].hz != 400 {
		t.Errorf("B4 not clamped: %+v", r.out.calls)
	}
}

func TestToneSinkErrorIsNotFatal(t *testing.T) {
	r := newRig(t, 10)
	r.out.fail = true
	r.press(1)
	r.in.Tone.Poll(r.ctx)
	r.clk.Advance(50 * time.Millisecond)
	r.release(1)
	r.in.Tone.Poll(r.ctx)
	if len(r.out.calls) != 2 {
		t.Fatalf("tone calls %+v", r.out.calls)
	}
}

func TestScannerEdges(t *testing.T) {
	r := newRig(t, 10)
	r.press(2)
	r.press(6)
	if s := r.in.State.Snapshot(); s.Note != 6 {
		t.Fatalf("last pressed key should sound, got %d", s.Note)
	}
	r.release(6)
	if s := r.in.State.Snapshot(); s.Note != 6 {
		t.Fatalf("note cleared while a key is still held: %d", s.Note)
	}
	r.release(2)
	if s := r.in.State.Snapshot(); s.Note != NoNote {
		t.Fatalf("note %d after all keys released", s.Note)
	}
	want := []int{2, 6, NoNote}
	if len(r.lst.notes) != len(want) {
		t.Fatalf("listener saw %v", r.lst.notes)
	}
	for i := range want {
		if r.lst.notes[i] != want[i] {
			t.Fatalf("listener saw %v, want %v", r.lst.notes, want)
		}
	}
}

func TestScannerBusError(t *testing.T) {
	r := newRig(t, 10)
	r.kb.keys = Keys(0).With(1).With(9)
	r.in.Scanner.Poll(r.ctx)
	if s := r.in.State.Snapshot(); s.Note != 9 {
		t.Fatalf("note %d", s.Note)
	}
	// the expander bank (notes 4..11) drops out: only the GPIO keys survive
	r.kb.keys = Keys(0).With(1)
	r.kb.err = errors.New("i2c: nack")
	r.in.Scanner.Poll(r.ctx)
	if s := r.in.State.Snapshot(); s.Note != 9 {
		t.Fatalf("note changed to %d on a degraded scan with a key still held", s.Note)
	}
	r.kb.keys = 0
	r.in.Scanner.Poll(r.ctx)
	if s := r.in.State.Snapshot(); s.Note != NoNote {
		t.Fatalf("note %d after the bus failed with nothing held", s.Note)
	}
}

func TestScannerReportsDeadBusOnce(t *testing.T) {
	var logs bytes.Buffer
	kb := &keyboard{err: errors.New("serial panel stopped: EOF")}
	sc := NewScanner(NewState(10), kb, nil, charmlog.New(&logs))
	for i := 0; i < 20; i++ {
		sc.Poll(context.Background())
	}
	if n := strings.Count(logs.String(), "key scan degraded"); n != 1 {
		t.Fatalf("reported %d times:\n%s", n, logs.String())
	}
	kb.err = nil
	sc.Poll(context.Background())
	sc.Poll(context.Background())
	if n := strings.Count(logs.String(), "key scan recovered"); n != 1 {
		t.Errorf("recovery reported %d times", n)
	}
	kb.err = errors.New("i2c: nack")
	sc.Poll(context.Background())
	if n := strings.Count(logs.String(), "key scan degraded"); n != 2 {
		t.Errorf("new failure reported %d times in total", n)
	}
}
