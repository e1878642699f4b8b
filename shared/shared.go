package shared

import "fmt"

// Event tags a Message travelling on the bus between the core tasks and the
// display loop.
type Event int

const (
	// RemoteReply carries the text returned by the remote collaborator.
	RemoteReply Event = iota
	// Error carries a short, displayable failure description.
	Error
	// Notice carries an informational line (connected peers, ports...).
	Notice
)

type Message struct {
	Type    Event
	Number  int
	Boolean bool
	String  string
}

func (e Event) String() string {
	switch e {
	case RemoteReply:
		return "remote-reply"
	case Error:
		return "error"
	case Notice:
		return "notice"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Post delivers msg without blocking: the display is a best-effort observer
// and a full bus only means a stale line.
func Post(sink chan<- Message, msg Message) bool {
	if sink == nil {
		return false
	}
	select {
	case sink <- msg:
		return true
	default:
		return false
	}
}
