// Package events fans lifecycle events from the in-process event bus out to
// HTTP subscribers such as the websocket handler.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
)

const defaultBuffer = 16

// Event is what subscribers receive. Payload holds the typed v1 payload
// when the envelope could be decoded.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflowId,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// FromEnvelope builds the subscriber view of an envelope.
func FromEnvelope(env eventbus.Envelope, payload any) Event {
	return Event{
		ID:         env.EventID,
		Type:       env.EventType,
		WorkflowID: env.WorkflowID,
		EntityID:   env.EntityID,
		Timestamp:  env.Timestamp,
		Payload:    payload,
	}
}

// Broadcaster delivers every event to all current subscribers without
// blocking. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
	missed atomic.Uint64
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber and returns its channel together with a
// cancel func that unregisters it and closes the channel. After Close the
// channel is returned already closed.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	return ch, func() { b.drop(ch) }
}

func (b *Broadcaster) drop(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Broadcast delivers event, stamping it with the current time if it has
// none.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.missed.Add(1)
		}
	}
}

// Missed is the number of deliveries skipped because a subscriber was full.
func (b *Broadcaster) Missed() uint64 {
	return b.missed.Load()
}

// Bridge broadcasts every valid, first-seen envelope arriving on sub until
// ctx is done or the subscription closes.
func (b *Broadcaster) Bridge(ctx context.Context, sub *eventbus.Subscription, consumer *eventbus.EnvelopeConsumer, log logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			env, payload, dup, err := consumer.DecodeAndValidate(msg.Payload)
			switch {
			case err != nil:
				log.Warn("dropping malformed event", "subject", msg.Subject, "error", err)
			case !dup:
				b.Broadcast(FromEnvelope(env, payload))
			}
		}
	}
}

// Forward calls fn for every broadcast event until ctx is done or the
// broadcaster is closed.
func (b *Broadcaster) Forward(ctx context.Context, fn func(Event)) {
	ch, cancel := b.Subscribe(256)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fn(event)
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
