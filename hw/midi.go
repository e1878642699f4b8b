package hw

import (
	"sync"

	"github.com/JeanRibes/piano/music"
	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const BEND_FULL = 16383

// MIDIPanel turns a MIDI keyboard into the instrument's inputs: keys fold onto
// the twelve notes, the pitch wheel is the pitch control and a controller
// acts as the record button.
type MIDIPanel struct {
	RecordCC uint8
	logger   *charmlog.Logger
	stop     func()

	mu     sync.Mutex
	counts [music.NUM_NOTES]int
	record bool
	bend   int
}

func NewMIDIPanel(recordCC uint8, logger *charmlog.Logger) *MIDIPanel {
	return &MIDIPanel{RecordCC: recordCC, logger: logger, bend: BEND_FULL / 2}
}

// Listen starts receiving from the named input port.
func (p *MIDIPanel) Listen(portName string) error {
	in, err := midi.FindInPort(portName)
	if err != nil {
		return err
	}
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		p.Handle(msg)
	})
	if err != nil {
		return err
	}
	p.stop = stop
	p.logger.Info("listening", "port", in.String())
	return nil
}

func (p *MIDIPanel) Close() {
	if p.stop != nil {
		p.stop()
	}
}

func (p *MIDIPanel) Handle(msg midi.Message) {
	var ch, key, vel uint8
	var rel int16
	var abs uint16
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case msg.GetNoteEnd(&ch, &key):
		if n := music.NoteOfKey(key); p.counts[n] > 0 {
			p.counts[n]--
		}
	case msg.GetNoteOn(&ch, &key, &vel):
		p.counts[music.NoteOfKey(key)]++
	case msg.GetPitchBend(&ch, &rel, &abs):
		p.bend = int(abs)
	case msg.GetControlChange(&ch, &key, &vel):
		if key == p.RecordCC {
			p.record = vel >= 64
		}
	}
}

func (p *MIDIPanel) ReadKeys() (music.Keys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var k music.Keys
	for n, c := range p.counts {
		if c > 0 {
			k = k.With(n)
		}
	}
	return k, nil
}

func (p *MIDIPanel) ReadRaw() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bend, nil
}

func (p *MIDIPanel) FullScale() int { return BEND_FULL }

func (p *MIDIPanel) Pressed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record
}

// MIDISink plays the tone on a synthesizer: the nearest note, bent to the
// exact frequency.
type MIDISink struct {
	Channel uint8
	send    func(midi.Message) error
	key     int
}

// OpenMIDISink opens the named output, or a virtual port when it does not
// exist.
func OpenMIDISink(portName string, channel uint8, logger *charmlog.Logger) (*MIDISink, error) {
	out, err := midi.FindOutPort(portName)
	if err != nil {
		logger.Warn("can't find output, opening a virtual one", "port", portName)
		drv, ok := drivers.Get().(*rtmididrv.Driver)
		if !ok {
			return nil, err
		}
		if out, err = drv.OpenVirtualOut("piano"); err != nil {
			return nil, err
		}
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, err
	}
	logger.Info("output", "port", out.String())
	return NewMIDISink(send, channel), nil
}

func NewMIDISink(send func(midi.Message) error, channel uint8) *MIDISink {
	return &MIDISink{Channel: channel, send: send, key: -1}
}

func (s *MIDISink) SetFrequency(hz int) error {
	note := nearest(hz)
	if err := s.send(midi.Pitchbend(s.Channel, music.Bend(note, hz))); err != nil {
		return err
	}
	key := int(music.Key(note))
	if key == s.key {
		return nil
	}
	if err := s.Mute(); err != nil {
		return err
	}
	s.key = key
	return s.send(midi.NoteOn(s.Channel, uint8(key), music.VELOCITY))
}

func (s *MIDISink) Mute() error {
	if s.key < 0 {
		return nil
	}
	key := s.key
	s.key = -1
	return s.send(midi.NoteOff(s.Channel, uint8(key)))
}

// nearest is the note whose bend range holds hz, clamped to the table.
func nearest(hz int) int {
	for i := music.NUM_NOTES - 1; i > 0; i-- {
		if hz >= music.Notes[i].Lower {
			return i
		}
	}
	return 0
}

// MIDIPorts lists the MIDI input and output ports.
func MIDIPorts() (ins, outs string) {
	return midi.GetInPorts().String(), midi.GetOutPorts().String()
}
