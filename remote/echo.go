package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/JeanRibes/piano/music"
	charmlog "github.com/charmbracelet/log"
	"go.bug.st/serial"
)

// Echo writes the name of every note played, one per line, to a serial
// consumer. Silence is not echoed.
type Echo struct {
	out    io.Writer
	hub    *Broadcaster
	logger *charmlog.Logger
}

func OpenEcho(portName string, baud int, hub *Broadcaster, logger *charmlog.Logger) (*Echo, io.Closer, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, nil, err
	}
	return NewEcho(port, hub, logger), port, nil
}

func NewEcho(out io.Writer, hub *Broadcaster, logger *charmlog.Logger) *Echo {
	return &Echo{out: out, hub: hub, logger: logger}
}

// Run subscribes to the broadcaster and copies note names until ctx is done.
func (e *Echo) Run(ctx context.Context) error {
	lines, leave, err := e.hub.Subscribe(16)
	if err != nil {
		return err
	}
	defer leave()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			var note int
			if _, err := fmt.Sscanf(line, "note_on:%d", &note); err != nil || !music.ValidNote(note) {
				continue
			}
			if _, err := io.WriteString(e.out, music.NoteName(note)+"\n"); err != nil {
				e.logger.Warn("echo", "err", err)
			}
		}
	}
}
