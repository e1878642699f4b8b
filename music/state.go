package music

import (
	"fmt"
	"sync"
	"time"
)

type Mode int

const (
	Idle Mode = iota
	Recording
	Playing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SynthState is the one shared aggregate of the instrument. Every field is
// read and written with the embedded mutex held; critical sections never do
// I/O.
type SynthState struct {
	CurrentNote int
	PitchOffset int
	NoteChanged bool
	Mode        Mode

	recordStart  time.Time
	capture      int // note being timed for the recording, or NoNote
	captureStart time.Time
	Sequence     Sequence

	notifyRemote bool
	pendingTake  []RecEvent // copy of the take that raised notifyRemote
	session      uint64 // bumped on every entry into Playing
	replaying    int    // index of the event sounding during playback, or -1

	sync.Mutex
}

func NewState(capacity int) *SynthState {
	return &SynthState{
		CurrentNote: NoNote,
		Mode:        Idle,
		capture:     NoNote,
		replaying:   -1,
		Sequence:    NewSequence(capacity),
	}
}

// Snapshot is a consistent copy of the fields observers combine.
type Snapshot struct {
	Note      int
	Offset    int
	Mode      Mode
	Count     int
	Frequency int // what the note sounds at: frozen while playing, live otherwise
	Capturing int
}

func (s *SynthState) Snapshot() Snapshot {
	s.Lock()
	defer s.Unlock()
	return s.snapshot()
}

func (s *SynthState) snapshot() Snapshot {
	return Snapshot{
		Note:      s.CurrentNote,
		Offset:    s.PitchOffset,
		Mode:      s.Mode,
		Count:     s.Sequence.Len(),
		Frequency: s.soundingFrequency(),
		Capturing: s.capture,
	}
}

// soundingFrequency must be called with the lock held.
func (s *SynthState) soundingFrequency() int {
	if s.CurrentNote == NoNote {
		return 0
	}
	if s.Mode == Playing && s.replaying >= 0 && s.replaying < s.Sequence.Len() {
		return s.Sequence.At(s.replaying).Frequency
	}
	return ResolveFrequency(s.CurrentNote, s.PitchOffset)
}

func (s *SynthState) SetOffset(offset int) {
	s.Lock()
	s.PitchOffset = clampOffset(offset)
	s.Unlock()
}

// TakeNotify reads and clears the one-shot notification request, together
// with the take that was stopped when it was raised. A later recording does
// not change what it returns.
func (s *SynthState) TakeNotify() ([]RecEvent, bool) {
	s.Lock()
	defer s.Unlock()
	pending, take := s.notifyRemote, s.pendingTake
	s.notifyRemote = false
	s.pendingTake = nil
	return take, pending
}

// Recording returns a copy of the recorded events.
func (s *SynthState) Recording() []RecEvent {
	s.Lock()
	defer s.Unlock()
	return s.Sequence.Events()
}

// Check reports a broken state invariant. A non-nil result is a programming
// error, never a runtime condition.
func (s *SynthState) Check() error {
	s.Lock()
	defer s.Unlock()
	switch s.Mode {
	case Idle, Recording, Playing:
	default:
		return fmt.Errorf("unknown mode %d", int(s.Mode))
	}
	if s.capture != NoNote && s.Mode != Recording {
		return fmt.Errorf("capture of note %d outside recording (mode %s)", s.capture, s.Mode)
	}
	if s.CurrentNote != NoNote && !ValidNote(s.CurrentNote) {
		return fmt.Errorf("current note %d out of range", s.CurrentNote)
	}
	if s.Sequence.Len() > s.Sequence.Cap() {
		return fmt.Errorf("sequence overflow: %d > %d", s.Sequence.Len(), s.Sequence.Cap())
	}
	return nil
}
