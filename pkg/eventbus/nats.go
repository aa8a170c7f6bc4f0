package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConn is the subset of *nats.Conn the transport needs.
type NATSConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSTransport publishes envelopes on NATS subjects. The subject hierarchy
// is NATS-native, so subscribers can use taskflow.v1.events.> wildcards.
type NATSTransport struct {
	conn NATSConn
}

// NATSConfig configures a NATS connection.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DialNATS connects to NATS and returns a transport over the connection.
func DialNATS(cfg NATSConfig) (*NATSTransport, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	name := cfg.Name
	if name == "" {
		name = "taskflow"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(cfg.ReconnectWait))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to nats %s: %w", url, err)
	}
	return NewNATSTransport(conn)
}

// NewNATSTransport wraps an existing connection.
func NewNATSTransport(conn NATSConn) (*NATSTransport, error) {
	if conn == nil {
		return nil, fmt.Errorf("eventbus: nats connection cannot be nil")
	}
	return &NATSTransport{conn: conn}, nil
}

// Publish sends payload on subject.
func (t *NATSTransport) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}
	return t.conn.Publish(subject, payload)
}

// Close closes the underlying connection.
func (t *NATSTransport) Close() error {
	t.conn.Close()
	return nil
}
