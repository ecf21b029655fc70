package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

type Publisher interface {
	PublishEntry(ctx context.Context, event EntryEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishEntry(_ context.Context, _ EntryEvent) error {
	return nil
}

// NatsPublisher publishes each event on a subject named after its type.
type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) PublishEntry(_ context.Context, event EntryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("PublishEntry: marshal: %w", err)
	}
	if err := p.nc.Publish(string(event.Type), data); err != nil {
		return fmt.Errorf("PublishEntry: %w", err)
	}
	return nil
}

// Connect dials NATS. An empty URL means messaging is disabled and returns nil, nil.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}
	return nc, nil
}
