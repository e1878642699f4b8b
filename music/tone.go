package music

import (
	"context"

	charmlog "github.com/charmbracelet/log"
)

const (
	// Distortion-free band of the buzzer.
	TONE_MIN_HZ = 261
	TONE_MAX_HZ = 694
)

// Tone drives the tone generator from the shared state: on a note change it
// plays (or mutes) the sounding note; between changes it follows the pitch
// control so that bending a held key is continuous.
type Tone struct {
	state  *SynthState
	sink   ToneSink
	logger *charmlog.Logger
	MinHz  int
	MaxHz  int

	lastOffset int
}

func NewTone(state *SynthState, sink ToneSink, logger *charmlog.Logger) *Tone {
	return &Tone{
		state:  state,
		sink:   sink,
		logger: logger,
		MinHz:  TONE_MIN_HZ,
		MaxHz:  TONE_MAX_HZ,
	}
}

// Clamp keeps hz inside the generator's band.
func (t *Tone) Clamp(hz int) int {
	if hz < t.MinHz {
		return t.MinHz
	}
	if hz > t.MaxHz {
		return t.MaxHz
	}
	return hz
}

func (t *Tone) Poll(context.Context) {
	const (
		keep = iota
		mute
		play
	)
	action, freq := keep, 0
	s := t.state

	s.Lock()
	if s.NoteChanged {
		s.NoteChanged = false
		if s.CurrentNote == NoNote {
			action = mute
		} else {
			action, freq = play, s.soundingFrequency()
		}
	} else if s.CurrentNote != NoNote && s.PitchOffset != t.lastOffset && s.Mode != Playing {
		action, freq = play, ResolveFrequency(s.CurrentNote, s.PitchOffset)
	}
	t.lastOffset = s.PitchOffset
	s.Unlock()

	switch action {
	case mute:
		if err := t.sink.Mute(); err != nil {
			t.logger.Warn("mute failed", "err", err)
		}
	case play:
		hz := t.Clamp(freq)
		if err := t.sink.SetFrequency(hz); err != nil {
			t.logger.Warn("tone failed", "hz", hz, "err", err)
		}
	}
}
