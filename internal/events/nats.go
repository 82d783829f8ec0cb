package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes each event on "<prefix>.<key>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("kiosk-order-service"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) Subject(event Event) string {
	if p.prefix == "" {
		return event.Key()
	}
	return p.prefix + "." + event.Key()
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.Encode()
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(event), body)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
