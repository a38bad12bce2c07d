package mqtt

import (
	"context"
	"errors"
)

const (
	QoS0 byte = 0
	QoS1 byte = 1
)

var ErrHandlerRequired = errors.New("realtime/mqtt: subscribe handler is nil")

// Message is one delivery from the broker. PacketID is non-zero for QoS1
// deliveries on a remote connection and must be passed back to Ack.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	PacketID uint16
}

type Handler func(Message)

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
}

type Subscriber interface {
	Subscribe(filter string, handler Handler) error
	Unsubscribe(filter string) error
	// Ack confirms a QoS1 delivery. The broker redelivers unacknowledged
	// messages after a reconnect.
	Ack(Message) error
}

type Broker interface {
	Publisher
	Subscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
