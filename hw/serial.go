package hw

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/JeanRibes/piano/music"
	charmlog "github.com/charmbracelet/log"
	"go.bug.st/serial"
)

// Frames from a serial panel are two bytes, status then code. The high bit of
// the status is set on release. A status of POT_STATUS carries the pitch
// control in the code byte.
const (
	RELEASE_BIT = 0x80
	POT_STATUS  = 0x01
	POT_FULL    = 255
)

// SerialPanel is a key panel streaming frames over a serial port. It serves
// as key, pitch and record source at once.
type SerialPanel struct {
	port   io.ReadCloser
	keymap Keymap
	logger *charmlog.Logger

	mu     sync.Mutex
	held   [256]bool
	counts [music.NUM_NOTES]int
	record bool
	pot    int
	err    error
}

func OpenSerialPanel(portName string, baud int, keymap Keymap, logger *charmlog.Logger) (*SerialPanel, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("reset input buffer", "err", err)
	}
	return NewSerialPanel(port, keymap, logger), nil
}

func NewSerialPanel(port io.ReadCloser, keymap Keymap, logger *charmlog.Logger) *SerialPanel {
	return &SerialPanel{port: port, keymap: keymap, logger: logger}
}

// Run decodes frames until the port fails or ctx is done.
func (p *SerialPanel) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.port.Close()
		case <-done:
		}
	}()
	buf := make([]byte, 2)
	for {
		if _, err := io.ReadFull(p.port, buf); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return err
		}
		p.Decode(buf[0], buf[1])
	}
}

// Decode applies one frame.
func (p *SerialPanel) Decode(status, code byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == POT_STATUS {
		p.pot = int(code)
		return
	}
	on := status&RELEASE_BIT == 0
	if p.held[code] == on {
		return
	}
	p.held[code] = on
	note, ok := p.keymap[int(code)]
	switch {
	case !ok:
		p.logger.Debug("unassigned", "code", code)
	case note < 0:
		p.record = on
	default:
		n := music.NoteOfKey(uint8(note))
		if on {
			p.counts[n]++
		} else if p.counts[n] > 0 {
			p.counts[n]--
		}
	}
}

var errPortClosed = errors.New("serial panel stopped")

func (p *SerialPanel) ReadKeys() (music.Keys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, errors.Join(errPortClosed, p.err)
	}
	var k music.Keys
	for n, c := range p.counts {
		if c > 0 {
			k = k.With(n)
		}
	}
	return k, nil
}

func (p *SerialPanel) ReadRaw() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pot, nil
}

func (p *SerialPanel) FullScale() int { return POT_FULL }

func (p *SerialPanel) Pressed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record
}

// Ports lists the serial ports present on the machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
