package music

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type keyboard struct {
	keys Keys
	err  error
}

func (k *keyboard) ReadKeys() (Keys, error) { return k.keys, k.err }

type knob struct{ raw, full int }

func (k *knob) ReadRaw() (int, error) { return k.raw, nil }
func (k *knob) FullScale() int        { return k.full }

type button struct{ down bool }

func (b *button) Pressed() bool { return b.down }

type toneCall struct {
	hz int // 0 for mute
	at time.Time
}

type sink struct {
	clk   *clock
	calls []toneCall
	fail  bool
}

func (s *sink) SetFrequency(hz int) error {
	s.calls = append(s.calls, toneCall{hz: hz, at: s.clk.Now()})
	if s.fail {
		return errors.New("pwm busy")
	}
	return nil
}

func (s *sink) Mute() error {
	s.calls = append(s.calls, toneCall{at: s.clk.Now()})
	return nil
}

type listener struct{ notes []int }

func (l *listener) NoteChanged(note int) { l.notes = append(l.notes, note) }

// rig drives the core tasks one poll at a time against a fake clock.
type rig struct {
	t   *testing.T
	ctx context.Context
	clk *clock
	kb  *keyboard
	pot *knob
	btn *button
	out *sink
	lst *listener
	in  *Instrument
}

func newRig(t *testing.T, capacity int) *rig {
	t.Helper()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := &rig{
		t:   t,
		ctx: context.Background(),
		clk: clk,
		kb:  &keyboard{},
		pot: &knob{full: 1023},
		btn: &button{},
		out: &sink{clk: clk},
		lst: &listener{},
	}
	r.in = NewInstrument(capacity, Peripherals{
		Keys:     r.kb,
		Pitch:    r.pot,
		Control:  r.btn,
		Sink:     r.out,
		Listener: r.lst,
	}, charmlog.New(io.Discard))
	r.in.SetClock(clk.Now)
	return r
}

func (r *rig) press(note int) {
	r.kb.keys = r.kb.keys.With(note)
	r.in.Scanner.Poll(r.ctx)
}

func (r *rig) release(note int) {
	r.kb.keys = r.kb.keys.Without(note)
	r.in.Scanner.Poll(r.ctx)
}

// control presses and releases the record button.
func (r *rig) control() Mode {
	r.btn.down = true
	r.in.Recorder.Poll(r.ctx)
	r.btn.down = false
	r.in.Recorder.Poll(r.ctx)
	return r.in.State.Snapshot().Mode
}

// run advances the clock by d in 10ms player periods, polling the player and
// the tone task after each step.
func (r *rig) run(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += 10 * time.Millisecond {
		r.in.Player.Poll(r.ctx)
		r.in.Tone.Poll(r.ctx)
		r.clk.Advance(10 * time.Millisecond)
	}
}

// playToEnd runs until playback returns to Idle, failing after limit.
func (r *rig) playToEnd(limit time.Duration) {
	r.t.Helper()
	for elapsed := time.Duration(0); elapsed <= limit; elapsed += 10 * time.Millisecond {
		r.in.Player.Poll(r.ctx)
		r.in.Tone.Poll(r.ctx)
		if r.in.State.Snapshot().Mode == Idle {
			return
		}
		r.clk.Advance(10 * time.Millisecond)
	}
	r.t.Fatalf("playback still running after %s", limit)
}

func (r *rig) check() {
	r.t.Helper()
	if err := r.in.State.Check(); err != nil {
		r.t.Fatal(err)
	}
}
