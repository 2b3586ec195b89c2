package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe bus with prefix filtering. It is
// the signal-subscription primitive the sync engines consume: subscribe by
// pattern, receive an unordered stream of typed signals.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	pattern string
	ch      chan Signal
}

// New creates a new signal bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends a signal to all subscribers whose pattern is a prefix of
// sig.Kind.
func (b *Bus) Publish(sig Signal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(sig.Kind, sub.pattern) {
			select {
			case sub.ch <- sig:
			default:
				// Drop signal if subscriber is full (non-blocking).
			}
		}
	}
}

// Subscribe returns a channel that receives signals matching the given
// prefix pattern. bufSize controls the channel buffer. Returns the channel
// and an unsubscribe function.
func (b *Bus) Subscribe(pattern string, bufSize int) (<-chan Signal, func()) {
	ch := make(chan Signal, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{pattern: pattern, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
