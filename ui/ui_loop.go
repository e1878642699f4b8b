package ui

import (
	"context"
	"time"

	. "github.com/JeanRibes/piano/shared"
	charmlog "github.com/charmbracelet/log"
)

// Loop refreshes the display every period and shows what the other tasks post
// on SinkUI: remote replies and errors land on the second line.
func Loop(ctx context.Context, p *Presenter, period time.Duration, SinkUI <-chan Message, logger *charmlog.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("context Done, quitting")
			return
		case msg := <-SinkUI:
			switch msg.Type {
			case RemoteReply:
				logger.Info("remote says", "text", msg.String)
				p.SetFooter(msg.String)
			case Error:
				logger.Error(msg.String)
				p.SetFooter("! " + msg.String)
			case Notice:
				logger.Info(msg.String)
			}
			p.Poll(ctx)
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}
