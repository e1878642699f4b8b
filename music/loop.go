package music

import (
	"context"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Poller is one step of a periodic task.
type Poller interface {
	Poll(ctx context.Context)
}

type PollFunc func(ctx context.Context)

func (f PollFunc) Poll(ctx context.Context) { f(ctx) }

// Task is a poller scheduled at a fixed period.
type Task struct {
	Name   string
	Period time.Duration
	Poller Poller
}

// Periods are the poll periods of the core tasks.
type Periods struct {
	Scan     time.Duration
	Pitch    time.Duration
	Tone     time.Duration
	Recorder time.Duration
	Playback time.Duration
}

func DefaultPeriods() Periods {
	return Periods{
		Scan:     50 * time.Millisecond,
		Pitch:    200 * time.Millisecond,
		Tone:     50 * time.Millisecond,
		Recorder: 50 * time.Millisecond,
		Playback: 10 * time.Millisecond,
	}
}

// Instrument groups the core tasks sharing one SynthState.
type Instrument struct {
	State    *SynthState
	Scanner  *Scanner
	Sampler  *Sampler
	Recorder *Recorder
	Player   *Player
	Tone     *Tone
}

// Peripherals are the drivers the core consumes.
type Peripherals struct {
	Keys     KeySource
	Pitch    AnalogSource
	Control  ButtonSource
	Sink     ToneSink
	Listener NoteListener
}

// NewInstrument wires the core tasks around a fresh state. logger is the
// parent logger; every task gets its own prefix.
func NewInstrument(capacity int, p Peripherals, logger *charmlog.Logger) *Instrument {
	state := NewState(capacity)
	return &Instrument{
		State:    state,
		Scanner:  NewScanner(state, p.Keys, p.Listener, logger.WithPrefix("keys")),
		Sampler:  NewSampler(state, p.Pitch, logger.WithPrefix("pitch")),
		Recorder: NewRecorder(state, p.Control, p.Listener, logger.WithPrefix("recorder")),
		Player:   NewPlayer(state, p.Listener, logger.WithPrefix("player")),
		Tone:     NewTone(state, p.Sink, logger.WithPrefix("tone")),
	}
}

// SetClock replaces the time source of every timed task.
func (in *Instrument) SetClock(now func() time.Time) {
	in.Scanner.Now = now
	in.Recorder.Now = now
	in.Player.Now = now
}

func (in *Instrument) Tasks(periods Periods) []Task {
	return []Task{
		{Name: "keys", Period: periods.Scan, Poller: in.Scanner},
		{Name: "pitch", Period: periods.Pitch, Poller: in.Sampler},
		{Name: "tone", Period: periods.Tone, Poller: in.Tone},
		{Name: "recorder", Period: periods.Recorder, Poller: in.Recorder},
		{Name: "player", Period: periods.Playback, Poller: in.Player},
	}
}

// Run starts every task in its own goroutine and returns once ctx is done and
// all of them have stopped.
func Run(ctx context.Context, tasks ...Task) {
	logger := charmlog.FromContext(ctx)
	var wg sync.WaitGroup
	for _, task := range tasks {
		if task.Poller == nil || task.Period <= 0 {
			logger.Warn("task not started", "task", task.Name, "period", task.Period)
			continue
		}
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			task.loop(ctx)
		}(task)
		logger.Debug("task started", "task", task.Name, "period", task.Period)
	}
	wg.Wait()
	logger.Info("stop")
}

func (t Task) loop(ctx context.Context) {
	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poller.Poll(ctx)
		}
	}
}
