// Package bus is the transport-neutral publish/subscribe layer. Delivery is
// at-least-once: a message is redelivered until its subscriber acks it.
package bus

import (
	"context"
	"errors"
)

var (
	// ErrTopicExists is returned by Provisioner.CreateTopic for a topic that
	// is already present. EnsureTopics treats it as success.
	ErrTopicExists = errors.New("bus: topic already exists")
	// ErrPoison marks a message that can never be handled. The worker acks it
	// so it is not redelivered forever.
	ErrPoison = errors.New("bus: poison message")
	ErrClosed = errors.New("bus: subscription closed")
)

// Message is one delivery. Key is the correlation key the publisher chose;
// Receipt is transport-specific and only meaningful to Ack.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
	Receipt any
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Subscription is a consumer-group membership on one topic.
type Subscription interface {
	// Fetch blocks until at least one message is available or ctx is done.
	// Messages an earlier Fetch returned and nobody acked come back first.
	Fetch(ctx context.Context) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Close() error
}

type Subscriber interface {
	// Subscribe joins group on topic. Every group sees every message; members
	// of one group share them.
	Subscribe(ctx context.Context, topic, group string) (Subscription, error)
}

type Provisioner interface {
	CreateTopic(ctx context.Context, topic string) error
}

// GroupRemover is implemented by transports whose groups outlive their
// subscriptions: a Redis stream group or an SQS queue keeps collecting
// messages until removed.
type GroupRemover interface {
	RemoveGroup(ctx context.Context, topic, group string) error
}

// Transport bundles the three roles one driver implements.
type Transport interface {
	Publisher
	Subscriber
	Provisioner
}

// Poison wraps err so the worker acks and drops the message.
func Poison(err error) error {
	return errors.Join(ErrPoison, err)
}
