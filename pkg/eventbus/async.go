package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull is returned by AsyncEmitter.Emit when the event was dropped.
	ErrQueueFull = errors.New("eventbus: emit queue full")
	// ErrEmitterClosed is returned by AsyncEmitter.Emit after Close.
	ErrEmitterClosed = errors.New("eventbus: emitter closed")
)

const defaultQueueSize = 1024

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// AsyncOption configures an AsyncEmitter.
type AsyncOption func(*AsyncEmitter)

// WithQueueSize sets how many events may wait for the publisher.
func WithQueueSize(n int) AsyncOption {
	return func(a *AsyncEmitter) {
		if n > 0 {
			a.size = n
		}
	}
}

// WithDropTelemetry reports dropped events as publishes with status "dropped".
func WithDropTelemetry(t Telemetry) AsyncOption {
	return func(a *AsyncEmitter) {
		if t != nil {
			a.telemetry = t
		}
	}
}

// WithErrorHandler is called from the forwarding goroutine for every event
// the wrapped emitter fails to publish.
func WithErrorHandler(fn func(Event, error)) AsyncOption {
	return func(a *AsyncEmitter) {
		if fn != nil {
			a.onError = fn
		}
	}
}

// AsyncEmitter queues events for a single goroutine that forwards them to
// the wrapped emitter in order. Emit never waits on the transport: when the
// queue is full the event is dropped and counted.
type AsyncEmitter struct {
	next      Emitter
	size      int
	telemetry Telemetry
	onError   func(Event, error)
	queue     chan queuedEvent
	done      chan struct{}
	dropped   atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewAsyncEmitter starts forwarding to next. Close stops it.
func NewAsyncEmitter(next Emitter, opts ...AsyncOption) *AsyncEmitter {
	a := &AsyncEmitter{
		next:      next,
		size:      defaultQueueSize,
		telemetry: nopTelemetry{},
		onError:   func(Event, error) {},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan queuedEvent, a.size)
	go a.run()
	return a
}

// Emit queues event and returns an empty envelope. The context keeps its
// values but not its cancellation, so a finished request does not abort a
// queued publish.
func (a *AsyncEmitter) Emit(ctx context.Context, event Event) (Envelope, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return Envelope{}, ErrEmitterClosed
	}
	select {
	case a.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return Envelope{}, nil
	default:
		a.dropped.Add(1)
		a.telemetry.RecordPublish("dropped")
		return Envelope{}, ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (a *AsyncEmitter) Pending() int { return len(a.queue) }

// Dropped returns how many events were lost to a full queue.
func (a *AsyncEmitter) Dropped() uint64 { return a.dropped.Load() }

// Close stops accepting events and waits until the queued ones have been
// handed to the wrapped emitter.
func (a *AsyncEmitter) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *AsyncEmitter) run() {
	defer close(a.done)
	for item := range a.queue {
		if _, err := a.next.Emit(item.ctx, item.event); err != nil {
			a.onError(item.event, err)
		}
	}
}
