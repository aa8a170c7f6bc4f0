package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// PayloadSchema lists the payload fields an event type must carry at one
// schema version.
type PayloadSchema struct {
	SchemaVersion string
	EventType     string
	Required      []string
}

// SchemaError reports payload fields missing from an envelope.
type SchemaError struct {
	EventType     string
	SchemaVersion string
	Missing       []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("eventbus: %s/%s payload missing %s",
		e.EventType, e.SchemaVersion, strings.Join(e.Missing, ", "))
}

// Decoder turns an envelope into the value handed to consumers.
type Decoder func(Envelope) (any, error)

type schemaKey struct{ version, eventType string }

// SchemaRouter checks envelopes against payload schemas and picks the
// decoder for their schema version. Event types without a schema pass.
type SchemaRouter struct {
	mu       sync.RWMutex
	required map[schemaKey][]string
	decoders map[string]Decoder
}

// NewSchemaRouter creates a router with nothing registered.
func NewSchemaRouter() *SchemaRouter {
	return &SchemaRouter{
		required: make(map[schemaKey][]string),
		decoders: make(map[string]Decoder),
	}
}

// NewDefaultSchemaRouter returns a router that knows every taskflow event.
func NewDefaultSchemaRouter() *SchemaRouter {
	r := NewSchemaRouter()
	for _, s := range DefaultSchemas() {
		r.required[schemaKey{s.SchemaVersion, s.EventType}] = s.Required
	}
	r.decoders[SchemaVersionV1] = decodeV1
	return r
}

// RegisterPayloadSchema adds or replaces a schema.
func (r *SchemaRouter) RegisterPayloadSchema(s PayloadSchema) error {
	if s.SchemaVersion == "" || s.EventType == "" {
		return fmt.Errorf("eventbus: schema version and event type are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.required[schemaKey{s.SchemaVersion, s.EventType}] = s.Required
	return nil
}

// RegisterDecoder sets the decoder for a schema version.
func (r *SchemaRouter) RegisterDecoder(version string, d Decoder) error {
	if version == "" || d == nil {
		return fmt.Errorf("eventbus: schema version and decoder are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[version] = d
	return nil
}

// Validate checks the envelope identity fields and the payload schema.
func (r *SchemaRouter) Validate(e Envelope) error {
	if err := e.check(); err != nil {
		return err
	}
	r.mu.RLock()
	required := r.required[schemaKey{e.SchemaVersion, e.EventType}]
	r.mu.RUnlock()
	if len(required) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Payload, &fields); err != nil {
		return fmt.Errorf("eventbus: %s payload is not an object: %w", e.EventType, err)
	}
	var missing []string
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{EventType: e.EventType, SchemaVersion: e.SchemaVersion, Missing: missing}
	}
	return nil
}

// Decode runs the decoder for the envelope's schema version. Without one the
// envelope itself is returned.
func (r *SchemaRouter) Decode(e Envelope) (any, error) {
	r.mu.RLock()
	d := r.decoders[e.SchemaVersion]
	r.mu.RUnlock()
	if d == nil {
		return e, nil
	}
	return d(e)
}

func decodeV1(e Envelope) (any, error) {
	kind, err := e.Kind()
	if err != nil {
		return e, nil
	}
	newPayload, ok := v1Payloads[kind]
	if !ok {
		return e, nil
	}
	target := newPayload()
	if err := e.DecodePayload(target); err != nil {
		return nil, err
	}
	return target, nil
}
