package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersionV1 is the initial payload schema.
const SchemaVersionV1 = "v1"

// Envelope is the wire form of every published event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	NodeID        string          `json:"node_id"`
	ShardKey      string          `json:"shard_key"`
	WorkflowID    string          `json:"workflow_id,omitempty"`
	EntityID      string          `json:"entity_id,omitempty"`
	OrderingKey   string          `json:"ordering_key"`
	Sequence      int64           `json:"sequence"`
	Payload       json.RawMessage `json:"payload"`
}

// Kind parses EventType back into the kind that produced it.
func (e Envelope) Kind() (Kind, error) {
	domain, typ, ok := strings.Cut(e.EventType, ".")
	if !ok || typ == "" || !Domain(domain).Valid() {
		return Kind{}, fmt.Errorf("eventbus: malformed event type %q", e.EventType)
	}
	return Kind{Domain: Domain(domain), Type: typ}, nil
}

// DecodePayload unmarshals the payload into v.
func (e Envelope) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("eventbus: decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// check reports the first identity or ordering field the envelope lacks.
func (e Envelope) check() error {
	for _, f := range []struct{ name, value string }{
		{"event_id", e.EventID},
		{"event_type", e.EventType},
		{"schema_version", e.SchemaVersion},
		{"node_id", e.NodeID},
		{"ordering_key", e.OrderingKey},
	} {
		if f.value == "" {
			return fmt.Errorf("eventbus: envelope missing %s", f.name)
		}
	}
	if e.Sequence <= 0 {
		return fmt.Errorf("eventbus: envelope sequence must be > 0, got %d", e.Sequence)
	}
	return nil
}

// seal wraps event for publishing from node.
func seal(node string, event Event, orderingKey string, seq int64) (Envelope, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventbus: marshal %s payload: %w", event.Kind, err)
	}
	schema := event.Schema
	if schema == "" {
		schema = SchemaVersionV1
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.Kind.String(),
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schema,
		NodeID:        node,
		ShardKey:      shardKey(event),
		WorkflowID:    event.WorkflowID,
		EntityID:      event.EntityID,
		OrderingKey:   orderingKey,
		Sequence:      seq,
		Payload:       payload,
	}
	return env, env.check()
}
