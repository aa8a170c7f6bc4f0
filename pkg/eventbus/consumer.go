package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultDedupWindow is how many recent event ids a consumer remembers.
const DefaultDedupWindow = 4096

// EnvelopeConsumer validates and decodes envelopes and suppresses duplicate
// deliveries within a sliding window of recent event ids.
type EnvelopeConsumer struct {
	router *SchemaRouter
	window int

	mu   sync.Mutex
	seen map[string]struct{}
	ring []string // recent ids, oldest at next once full
	next int
}

// NewEnvelopeConsumer creates a schema-aware consumer. A nil router skips
// validation and returns envelopes undecoded.
func NewEnvelopeConsumer(router *SchemaRouter) *EnvelopeConsumer {
	return &EnvelopeConsumer{
		router: router,
		window: DefaultDedupWindow,
		seen:   make(map[string]struct{}),
	}
}

// DecodeAndValidate decodes raw event bytes, validates them against the
// router and reports whether the event was already seen.
func (c *EnvelopeConsumer) DecodeAndValidate(raw []byte) (Envelope, any, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, nil, false, fmt.Errorf("eventbus: invalid envelope json: %w", err)
	}

	if c.router != nil {
		if err := c.router.Validate(envelope); err != nil {
			return Envelope{}, nil, false, err
		}
	}

	if c.markSeen(envelope.EventID) {
		return envelope, nil, true, nil
	}

	var decoded any = envelope
	var err error
	if c.router != nil {
		decoded, err = c.router.Decode(envelope)
		if err != nil {
			return Envelope{}, nil, false, err
		}
	}
	return envelope, decoded, false, nil
}

// markSeen records id and reports whether it was already present. Once the
// window is full each new id evicts the oldest.
func (c *EnvelopeConsumer) markSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.seen[id]; exists {
		return true
	}
	if c.ring == nil {
		c.ring = make([]string, 0, c.window)
	}
	if len(c.ring) < c.window {
		c.ring = append(c.ring, id)
	} else {
		delete(c.seen, c.ring[c.next])
		c.ring[c.next] = id
		c.next = (c.next + 1) % c.window
	}
	c.seen[id] = struct{}{}
	return false
}
