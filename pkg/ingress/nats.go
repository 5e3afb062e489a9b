// Package ingress adapts an external transport into Runtime.Enqueue
// calls — the "real payloads from upstream" branch of spec §4.D step 1,
// alongside the synthetic load-test generator in pkg/producer.
package ingress

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/agentbus/core/pkg/events"
)

// NatsBus implements events.Bus over a NATS connection. It supersedes
// the worker-service template's events.NewNats reference, which named a
// constructor the teacher repo never actually implemented.
type NatsBus struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewNats connects to url and returns a Bus backed by it.
func NewNats(url string) (*NatsBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &NatsBus{conn: conn}, nil
}

func (b *NatsBus) Publish(ctx context.Context, topic string, event events.Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}
	return b.conn.Publish(topic, data)
}

func (b *NatsBus) Subscribe(ctx context.Context, topic string, handler events.Handler) error {
	sub, err := b.conn.Subscribe(topic, func(msg *nats.Msg) {
		event, err := unmarshalEvent(msg.Data)
		if err != nil {
			return
		}
		_ = handler(ctx, event)
	})
	if err != nil {
		return err
	}
	b.subs = append(b.subs, sub)
	return nil
}

func (b *NatsBus) Close() error {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}
