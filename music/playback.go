package music

import (
	"context"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Player replays the recorded sequence while the mode is Playing, comparing
// the time since playback started with each event's onset and duration.
type Player struct {
	state    *SynthState
	listener NoteListener
	logger   *charmlog.Logger
	Now      func() time.Time

	running        bool
	session        uint64
	cursor         int
	startedAt      time.Time
	eventStartedAt time.Time
	eventActive    bool
}

func NewPlayer(state *SynthState, listener NoteListener, logger *charmlog.Logger) *Player {
	return &Player{
		state:    state,
		listener: listener,
		logger:   logger,
		Now:      time.Now,
	}
}

func (p *Player) reset() {
	p.running = false
	p.cursor = 0
	p.startedAt = time.Time{}
	p.eventStartedAt = time.Time{}
	p.eventActive = false
}

// Cursor is the index of the next (or sounding) event.
func (p *Player) Cursor() int { return p.cursor }

func (p *Player) Poll(context.Context) {
	now := p.Now()
	s := p.state

	var transitions []int
	var begun, ended *RecEvent
	aborted, finished := false, false

	s.Lock()
	if p.running && (s.Mode != Playing || s.session != p.session) {
		aborted = p.eventActive || p.cursor < s.Sequence.Len()
		p.reset()
	}
	if s.Mode != Playing {
		s.Unlock()
		if aborted {
			p.logger.Debug("playback cursor reset")
		}
		return
	}
	if !p.running {
		p.running = true
		p.session = s.session
		p.startedAt = now
	}

	n := s.Sequence.Len()
	if !p.eventActive && p.cursor < n && millis(now.Sub(p.startedAt)) >= s.Sequence.At(p.cursor).Onset {
		ev := s.Sequence.At(p.cursor)
		s.CurrentNote = ev.Note
		s.NoteChanged = true
		s.replaying = p.cursor
		p.eventStartedAt = now
		p.eventActive = true
		transitions = append(transitions, ev.Note)
		begun = &ev
	}
	if p.eventActive && millis(now.Sub(p.eventStartedAt)) >= s.Sequence.At(p.cursor).Duration {
		ev := s.Sequence.At(p.cursor)
		s.CurrentNote = NoNote
		s.NoteChanged = true
		s.replaying = -1
		p.eventActive = false
		p.cursor++
		transitions = append(transitions, NoNote)
		ended = &ev
	}
	if p.cursor >= n && !p.eventActive {
		s.Mode = Idle
		s.CurrentNote = NoNote
		s.NoteChanged = true
		s.replaying = -1
		p.reset()
		finished = true
	}
	s.Unlock()

	publish(p.listener, transitions)
	if begun != nil {
		p.logger.Debug("playing", "note", NoteName(begun.Note), "hz", begun.Frequency, "duration_ms", begun.Duration)
	}
	if ended != nil {
		p.logger.Debug("note off", "note", NoteName(ended.Note))
	}
	if finished {
		p.logger.Info("playback finished", "notes", n)
	}
}
