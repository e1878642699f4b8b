package remote

import (
	"errors"
	"fmt"
	"sync"
)

var ErrBroadcasterFull = errors.New("remote: no free subscriber slot")

// Broadcaster fans note transitions out to a bounded set of subscribers. A
// slow subscriber loses lines instead of blocking the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	max    int
	nextID int
	subs   map[int]chan string
}

func NewBroadcaster(max int) *Broadcaster {
	if max <= 0 {
		max = 4
	}
	return &Broadcaster{max: max, subs: map[int]chan string{}}
}

// Subscribe returns the subscriber's stream and a function to leave.
func (b *Broadcaster) Subscribe(buffer int) (<-chan string, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) >= b.max {
		return nil, nil, ErrBroadcasterFull
	}
	id := b.nextID
	b.nextID++
	ch := make(chan string, buffer)
	b.subs[id] = ch
	var once sync.Once
	leave := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, leave, nil
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish returns the number of subscribers that took the line.
func (b *Broadcaster) Publish(line string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- line:
			n++
		default:
		}
	}
	return n
}

// NoteChanged publishes "note_on:<i>", -1 for silence.
func (b *Broadcaster) NoteChanged(note int) {
	b.Publish(fmt.Sprintf("note_on:%d", note))
}
