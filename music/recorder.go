package music

import (
	"context"
	"time"

	charmlog "github.com/charmbracelet/log"
)

func millis(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}

// captureResult tells the scanner what a key edge did to the recording, so it
// can log once the lock is released.
type captureResult int

const (
	notCaptured captureResult = iota
	captured
	droppedFull
	finalized
)

// startCapture appends a new event for note if a recording is running and no
// other note is being timed. Lock held.
func (s *SynthState) startCapture(note int, now time.Time) captureResult {
	if s.Mode != Recording || s.capture != NoNote {
		return notCaptured
	}
	ev := RecEvent{
		Note:      note,
		Frequency: ResolveFrequency(note, s.PitchOffset),
		Onset:     millis(now.Sub(s.recordStart)),
	}
	if !s.Sequence.Append(ev) {
		return droppedFull
	}
	s.capture = note
	s.captureStart = now
	return captured
}

// finishCapture stamps the duration of the event being timed when its key is
// released. Lock held.
func (s *SynthState) finishCapture(note int, now time.Time) captureResult {
	if s.Mode != Recording || s.capture != note {
		return notCaptured
	}
	if last := s.Sequence.last(); last != nil {
		last.Duration = millis(now.Sub(s.captureStart))
	}
	s.capture = NoNote
	return finalized
}

// Recorder cycles Idle -> Recording -> Playing -> Idle on each rising edge of
// the control input.
type Recorder struct {
	state    *SynthState
	button   ButtonSource
	listener NoteListener
	logger   *charmlog.Logger
	Now      func() time.Time

	prev bool
}

func NewRecorder(state *SynthState, button ButtonSource, listener NoteListener, logger *charmlog.Logger) *Recorder {
	return &Recorder{
		state:    state,
		button:   button,
		listener: listener,
		logger:   logger,
		Now:      time.Now,
	}
}

// Poll samples the control input; only a rising edge moves the state machine.
func (r *Recorder) Poll(context.Context) {
	cur := r.button.Pressed()
	if cur && !r.prev {
		r.Advance()
	}
	r.prev = cur
}

// Advance performs one transition of the mode cycle and returns the new mode.
func (r *Recorder) Advance() Mode {
	now := r.Now()
	s := r.state
	silenced := false
	dropped := false

	s.Lock()
	from := s.Mode
	switch s.Mode {
	case Idle:
		s.Sequence.Reset()
		s.capture = NoNote
		s.recordStart = now
		s.Mode = Recording
	case Recording:
		if s.capture != NoNote {
			// the held note never got a duration: it is not part of the take
			s.Sequence.dropLast()
			s.capture = NoNote
			dropped = true
		}
		silenced = s.silence()
		s.notifyRemote = true
		s.pendingTake = s.Sequence.Events()
		s.session++
		s.Mode = Playing
	case Playing:
		silenced = s.silence()
		s.replaying = -1
		s.Mode = Idle
	}
	to := s.Mode
	count := s.Sequence.Len()
	capacity := s.Sequence.Cap()
	s.Unlock()

	if silenced {
		publish(r.listener, []int{NoNote})
	}
	switch to {
	case Recording:
		r.logger.Info("recording started", "capacity", capacity)
	case Playing:
		r.logger.Info("recording stopped, playing back", "notes", count, "dropped_held", dropped)
	case Idle:
		r.logger.Info("playback stopped", "from", from)
	}
	return to
}

// silence clears the sounding note. Lock held.
func (s *SynthState) silence() bool {
	if s.CurrentNote == NoNote {
		return false
	}
	s.CurrentNote = NoNote
	s.NoteChanged = true
	return true
}
