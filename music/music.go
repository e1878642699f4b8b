package music

import (
	"bytes"
	"math"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// RecEvent is one captured note. Frequency is frozen at capture time so the
// replay does not depend on where the pitch control sits later on.
type RecEvent struct {
	Note      int
	Frequency int
	Onset     uint32 // ms since the recording started
	Duration  uint32 // ms held; 0 while the key is still down
}

// Sequence is the bounded recording buffer. Events are appended in onset
// order since only one note is captured at a time.
type Sequence struct {
	events []RecEvent
}

const DEFAULT_CAPACITY = 100

func NewSequence(capacity int) Sequence {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	return Sequence{events: make([]RecEvent, 0, capacity)}
}

func (s *Sequence) Len() int   { return len(s.events) }
func (s *Sequence) Cap() int   { return cap(s.events) }
func (s *Sequence) Full() bool { return len(s.events) >= cap(s.events) }

// Reset forgets the previous recording without releasing the buffer.
func (s *Sequence) Reset() {
	s.events = s.events[0:0]
}

// Append adds ev unless the buffer is full.
func (s *Sequence) Append(ev RecEvent) bool {
	if s.Full() {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

func (s *Sequence) At(i int) RecEvent {
	return s.events[i]
}

// last returns the most recent event, for finalizing its duration.
func (s *Sequence) last() *RecEvent {
	if len(s.events) == 0 {
		return nil
	}
	return &s.events[len(s.events)-1]
}

func (s *Sequence) dropLast() {
	if len(s.events) > 0 {
		s.events = s.events[:len(s.events)-1]
	}
}

// Events returns a copy that can be used once the lock is released.
func (s *Sequence) Events() []RecEvent {
	out := make([]RecEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Names lists the note names in order, keeping at most max of them (max <= 0
// keeps everything).
func Names(events []RecEvent, max int) []string {
	names := make([]string, 0, len(events))
	for i, ev := range events {
		if max > 0 && i >= max {
			break
		}
		names = append(names, NoteName(ev.Note))
	}
	return names
}

const (
	BPM      = float64(120)
	TICKS    = smf.MetricTicks(960)
	VELOCITY = uint8(100)
	// BEND_RANGE is the pitch-bend sensitivity assumed on MIDI outputs, in
	// semitones each way.
	BEND_RANGE = 2.0
)

func keyFrequency(key midi.Note) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}

// Bend returns the 14-bit signed pitch-bend value that moves the note's MIDI
// key to freq, saturated at the bend range.
func Bend(note, freq int) int16 {
	if !ValidNote(note) || freq <= 0 {
		return 0
	}
	semis := 12 * math.Log2(float64(freq)/keyFrequency(Key(note)))
	v := math.Round(semis / BEND_RANGE * 8192)
	if v > 8191 {
		v = 8191
	}
	if v < -8192 {
		v = -8192
	}
	return int16(v)
}

func msTicks(ms uint32) uint32 {
	return TICKS.Ticks(BPM, time.Duration(ms)*time.Millisecond)
}

// Track renders events as a single SMF track: a pitch bend carrying the
// frozen frequency, then the note on/off pair, with the recorded silences as
// deltas.
func Track(events []RecEvent) smf.Track {
	tr := smf.Track{}
	tr.Add(0, smf.MetaTrackSequenceName("melody"))
	tr.Add(0, smf.MetaTempo(BPM))
	end := uint32(0)
	for _, ev := range events {
		silence := uint32(0)
		if ev.Onset > end {
			silence = ev.Onset - end
		}
		tr.Add(msTicks(silence), midi.Pitchbend(0, Bend(ev.Note, ev.Frequency)))
		tr.Add(0, midi.NoteOn(0, uint8(Key(ev.Note)), VELOCITY))
		tr.Add(msTicks(ev.Duration), midi.NoteOff(0, uint8(Key(ev.Note))))
		end = ev.Onset + ev.Duration
	}
	tr.Close(0)
	return tr
}

// SMF encodes events as a Standard MIDI File.
func SMF(events []RecEvent) ([]byte, error) {
	f := smf.New()
	f.TimeFormat = TICKS
	if err := f.Add(Track(events)); err != nil {
		return nil, err
	}
	var bf bytes.Buffer
	if _, err := f.WriteTo(&bf); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}
