package music

import (
	"context"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Scanner polls the note keys, edge-detects each of them against the previous
// poll and drives the current note and the recording from those edges.
type Scanner struct {
	state    *SynthState
	keys     KeySource
	listener NoteListener
	logger   *charmlog.Logger
	Now      func() time.Time

	prev     Keys
	degraded string // last scan error reported, empty while healthy
}

func NewScanner(state *SynthState, keys KeySource, listener NoteListener, logger *charmlog.Logger) *Scanner {
	return &Scanner{
		state:    state,
		keys:     keys,
		listener: listener,
		logger:   logger,
		Now:      time.Now,
	}
}

type edge struct {
	note   int
	press  bool
	result captureResult
	ev     RecEvent
}

func (sc *Scanner) Poll(context.Context) {
	cur, err := sc.keys.ReadKeys()
	switch {
	case err != nil && err.Error() != sc.degraded:
		sc.logger.Warn("key scan degraded, unread keys count as released", "err", err)
		sc.degraded = err.Error()
	case err != nil:
		sc.logger.Debug("key scan still degraded", "err", err)
	case sc.degraded != "":
		sc.logger.Info("key scan recovered")
		sc.degraded = ""
	}
	now := sc.Now()
	s := sc.state

	var edges []edge
	var transitions []int

	s.Lock()
	if s.Mode == Playing {
		// keep polling so edges stay coherent, but playback owns the note
		sc.prev = cur
		s.Unlock()
		return
	}
	for i := 0; i < NUM_NOTES; i++ {
		on, was := cur.Pressed(i), sc.prev.Pressed(i)
		switch {
		case on && !was:
			s.CurrentNote = i
			s.NoteChanged = true
			transitions = append(transitions, i)
			e := edge{note: i, press: true, result: s.startCapture(i, now)}
			if e.result == captured {
				e.ev = *s.Sequence.last()
			}
			edges = append(edges, e)
		case !on && was:
			e := edge{note: i, result: s.finishCapture(i, now)}
			if e.result == finalized {
				e.ev = *s.Sequence.last()
			}
			edges = append(edges, e)
		}
	}
	if !cur.Any() && s.silence() {
		transitions = append(transitions, NoNote)
	}
	count := s.Sequence.Len()
	s.Unlock()

	sc.prev = cur
	publish(sc.listener, transitions)
	for _, e := range edges {
		switch e.result {
		case captured:
			sc.logger.Info("captured note", "n", count, "note", NoteName(e.note), "hz", e.ev.Frequency, "onset_ms", e.ev.Onset)
		case finalized:
			sc.logger.Info("finished note", "note", NoteName(e.note), "duration_ms", e.ev.Duration)
		case droppedFull:
			sc.logger.Debug("recording full, note not captured", "note", NoteName(e.note), "capacity", count)
		default:
			if e.press {
				sc.logger.Debug("key", "note", NoteName(e.note))
			}
		}
	}
}

// Scale maps a raw analog reading onto 0..MAX_OFFSET.
func Scale(raw, fullScale int) int {
	if fullScale <= 0 || raw <= 0 {
		return 0
	}
	if raw > fullScale {
		raw = fullScale
	}
	return raw * MAX_OFFSET / fullScale
}

// Sampler reads the pitch-bend control into the shared offset.
type Sampler struct {
	state  *SynthState
	src    AnalogSource
	logger *charmlog.Logger
}

func NewSampler(state *SynthState, src AnalogSource, logger *charmlog.Logger) *Sampler {
	return &Sampler{state: state, src: src, logger: logger}
}

func (p *Sampler) Poll(context.Context) {
	raw, err := p.src.ReadRaw()
	if err != nil {
		p.logger.Warn("pitch read failed", "err", err)
		return
	}
	p.state.SetOffset(Scale(raw, p.src.FullScale()))
}
