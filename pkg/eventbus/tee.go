package eventbus

import (
	"context"
	"fmt"
)

// TeeTransport publishes to a primary transport and mirrors every message to
// local transports. Only the primary's error is returned; mirror failures
// are reported through OnMirrorError.
type TeeTransport struct {
	primary Transport
	mirrors []Transport

	// OnMirrorError is called for every failed mirror publish when set.
	OnMirrorError func(subject string, err error)
}

// Tee creates a TeeTransport.
func Tee(primary Transport, mirrors ...Transport) (*TeeTransport, error) {
	if primary == nil {
		return nil, fmt.Errorf("eventbus: primary transport cannot be nil")
	}
	return &TeeTransport{primary: primary, mirrors: mirrors}, nil
}

// Publish sends payload on the primary and then on every mirror.
func (t *TeeTransport) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := t.primary.Publish(ctx, subject, payload); err != nil {
		return err
	}
	for _, m := range t.mirrors {
		if err := m.Publish(ctx, subject, payload); err != nil && t.OnMirrorError != nil {
			t.OnMirrorError(subject, err)
		}
	}
	return nil
}
