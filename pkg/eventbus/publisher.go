package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Transport publishes bytes to a subject.
type Transport interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Telemetry observes publish outcomes.
type Telemetry interface {
	RecordPublish(status string)
	RecordRetry()
	SetDegradedMode(active bool)
	RecordOutage()
	RecordRecovery()
}

type nopTelemetry struct{}

func (nopTelemetry) RecordPublish(string) {}
func (nopTelemetry) RecordRetry()         {}
func (nopTelemetry) SetDegradedMode(bool) {}
func (nopTelemetry) RecordOutage()        {}
func (nopTelemetry) RecordRecovery()      {}

// RetryConfig is the publish retry policy. MaxRetries counts attempts after
// the first one.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2,
	}
}

func (c RetryConfig) validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("eventbus: max retries cannot be negative")
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff || c.BackoffFactor < 1 {
		return fmt.Errorf("eventbus: invalid retry backoff %v..%v x%g",
			c.InitialBackoff, c.MaxBackoff, c.BackoffFactor)
	}
	return nil
}

// delay returns the wait before retry n (0-based).
func (c RetryConfig) delay(n int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 0; i < n; i++ {
		d *= c.BackoffFactor
		if d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	return time.Duration(d)
}

// Event is what the engines hand to an Emitter.
type Event struct {
	Kind        Kind
	ShardKey    string
	WorkflowID  string
	EntityID    string
	Schema      string
	Payload     any
	OrderingKey string
}

// Emitter is what the engines publish through.
type Emitter interface {
	Emit(ctx context.Context, event Event) (Envelope, error)
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit returns an empty envelope.
func (NopEmitter) Emit(context.Context, Event) (Envelope, error) { return Envelope{}, nil }

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithRetry replaces the default retry policy.
func WithRetry(c RetryConfig) PublisherOption {
	return func(p *Publisher) { p.retry = c }
}

// WithTelemetry reports publish outcomes to t.
func WithTelemetry(t Telemetry) PublisherOption {
	return func(p *Publisher) {
		if t != nil {
			p.telemetry = t
		}
	}
}

// WithSchemaRouter rejects events whose envelope fails router validation.
func WithSchemaRouter(r *SchemaRouter) PublisherOption {
	return func(p *Publisher) { p.router = r }
}

// Publisher seals events into envelopes and publishes them with retries.
// Sequences increase per ordering key. A failed attempt puts the publisher
// in degraded mode until the next successful publish.
type Publisher struct {
	transport Transport
	nodeID    string
	retry     RetryConfig
	telemetry Telemetry
	router    *SchemaRouter

	mu        sync.Mutex
	sequences map[string]int64
	degraded  bool
}

// NewPublisher creates a publisher for node on transport.
func NewPublisher(nodeID string, transport Transport, opts ...PublisherOption) (*Publisher, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("eventbus: node id cannot be empty")
	}
	if transport == nil {
		return nil, fmt.Errorf("eventbus: transport cannot be nil")
	}
	p := &Publisher{
		transport: transport,
		nodeID:    nodeID,
		retry:     DefaultRetryConfig(),
		telemetry: nopTelemetry{},
		sequences: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.retry.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Emit publishes event and returns the envelope that was sent.
func (p *Publisher) Emit(ctx context.Context, event Event) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	if event.Kind.Type == "" {
		return Envelope{}, fmt.Errorf("eventbus: event type cannot be empty")
	}
	if !event.Kind.Domain.Valid() {
		return Envelope{}, fmt.Errorf("eventbus: unsupported domain %q", event.Kind.Domain)
	}

	key := orderingKey(event)
	env, err := seal(p.nodeID, event, key, p.nextSequence(key))
	if err != nil {
		return Envelope{}, err
	}
	if p.router != nil {
		if err := p.router.Validate(env); err != nil {
			return Envelope{}, err
		}
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventbus: marshal envelope: %w", err)
	}

	if err := p.publish(ctx, Subject(event.Kind, env.ShardKey), body); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (p *Publisher) publish(ctx context.Context, subject string, body []byte) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = p.transport.Publish(ctx, subject, body)
		if lastErr == nil {
			p.telemetry.RecordPublish("success")
			p.setDegraded(false)
			return nil
		}
		p.setDegraded(true)
		if attempt == p.retry.MaxRetries {
			break
		}
		p.telemetry.RecordRetry()

		timer := time.NewTimer(p.retry.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			p.telemetry.RecordPublish("canceled")
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.telemetry.RecordPublish("failed")
	return fmt.Errorf("eventbus: publish %s failed after %d attempts: %w",
		subject, p.retry.MaxRetries+1, lastErr)
}

// Degraded reports whether the last publish attempt failed.
func (p *Publisher) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

func (p *Publisher) nextSequence(key string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequences[key]++
	return p.sequences[key]
}

// setDegraded records a transition into or out of degraded mode.
func (p *Publisher) setDegraded(degraded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.degraded == degraded {
		return
	}
	p.degraded = degraded
	p.telemetry.SetDegradedMode(degraded)
	if degraded {
		p.telemetry.RecordOutage()
	} else {
		p.telemetry.RecordRecovery()
	}
}

// shardKey defaults to the workflow id so subscribers can follow one workflow.
func shardKey(event Event) string {
	switch {
	case event.ShardKey != "":
		return event.ShardKey
	case event.WorkflowID != "":
		return event.WorkflowID
	default:
		return "global"
	}
}

// orderingKey picks the narrowest scope the event belongs to.
func orderingKey(event Event) string {
	switch {
	case event.OrderingKey != "":
		return event.OrderingKey
	case event.EntityID != "":
		return event.EntityID
	default:
		return shardKey(event)
	}
}
