package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBusClosed is returned by a MemoryBus after Close.
var ErrBusClosed = errors.New("eventbus: memory bus closed")

const defaultSubscriptionBuffer = 32

// Message is one delivery from the MemoryBus.
type Message struct {
	Subject   string
	Payload   []byte
	Timestamp time.Time
}

// Subscription receives the messages whose subject matches its pattern.
// A full buffer drops the message for this subscription only.
type Subscription struct {
	tokens  []string
	ch      chan Message
	bus     *MemoryBus
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Message { return s.ch }

// Dropped returns how many messages were lost to a full buffer.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}

// MemoryBus is the in-process transport. Subjects are dot separated; a
// pattern token "*" matches one subject token and a trailing ">" matches
// one or more.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*Subscription]struct{})}
}

// Publish delivers a copy of payload to every matching subscription without
// blocking.
func (b *MemoryBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}
	tokens := strings.Split(subject, ".")
	msg := Message{
		Subject:   subject,
		Payload:   append([]byte(nil), payload...),
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for s := range b.subs {
		if !matchTokens(s.tokens, tokens) {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a subscription for pattern. A non-positive buffer uses
// the default size.
func (b *MemoryBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	tokens, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	s := &Subscription{tokens: tokens, ch: make(chan Message, buffer), bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs[s] = struct{}{}
	return s, nil
}

// Close closes every subscription and rejects further use.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

func parsePattern(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("eventbus: subscription pattern cannot be empty")
	}
	tokens := strings.Split(pattern, ".")
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("eventbus: empty token in pattern %q", pattern)
		}
		if tok == ">" && i != len(tokens)-1 {
			return nil, fmt.Errorf("eventbus: '>' must be the last token in %q", pattern)
		}
	}
	return tokens, nil
}

func matchTokens(pattern, subject []string) bool {
	for i, p := range pattern {
		if p == ">" {
			return len(subject) > i
		}
		if i >= len(subject) || (p != "*" && p != subject[i]) {
			return false
		}
	}
	return len(pattern) == len(subject)
}
