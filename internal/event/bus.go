package event

import (
	"sync"
	"sync/atomic"

	"github.com/codecli/codecli/internal/observability"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// subscriber owns one bounded delivery channel. A full buffer drops the
// event for that subscriber and bumps its loss counter; publication never
// blocks the agent loop.
type subscriber struct {
	name    string
	ch      chan Event
	dropped atomic.Uint64
}

// Bus is an ordered, multi-subscriber publisher of session events.
// Events are delivered to each subscriber in publication order.
type Bus struct {
	mu     sync.Mutex
	subs   []*subscriber
	closed bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a named subscriber and returns its delivery channel.
// bufferSize <= 0 uses DefaultBufferSize.
func (b *Bus) Subscribe(name string, bufferSize int) <-chan Event {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	sub := &subscriber{
		name: name,
		ch:   make(chan Event, bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		// Late subscribers on a closed bus get a closed channel.
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish delivers ev to every subscriber without blocking. Subscribers
// whose buffer is full lose the event; the loss is counted.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	observability.RecordEventPublished(string(ev.Kind))
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			observability.RecordEventDropped(sub.name)
		}
	}
}

// Dropped returns the number of events lost for a named subscriber.
func (b *Bus) Dropped(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.name == name {
			return sub.dropped.Load()
		}
	}
	return 0
}

// Close closes all subscriber channels. Safe to call multiple times.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
}
