package relay

import (
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/journey_agent/internal/events"
)

const subscriberBufSize = 256

// Broker fans out run messages to every connected push client.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan events.Message
	nextID      atomic.Int64
	dropped     atomic.Int64
	onDrop      func()
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan events.Message),
	}
}

// OnDrop registers fn to be called whenever a message is dropped for a slow
// subscriber. It must be set before the broker is shared.
func (b *Broker) OnDrop(fn func()) {
	b.onDrop = fn
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive messages on. The channel is buffered; slow consumers will have
// messages dropped.
func (b *Broker) Subscribe() (int64, <-chan events.Message) {
	id := b.nextID.Add(1)
	ch := make(chan events.Message, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends msg to all subscribers without blocking.
func (b *Broker) Publish(msg events.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Sink returns a publisher for the events of one run.
func (b *Broker) Sink(runID string) func(events.Event) {
	return func(e events.Event) {
		b.Publish(events.NewMessage(runID, e))
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many messages were dropped for slow subscribers.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
