// Package mqttbus maps the bus onto MQTT. A message on topic T with key K is
// published to T/K at QoS1; a group subscribes to the shared filter
// $share/<group>/T/+ so each group receives every message once.
package mqttbus

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bronystylecrazy/tokenbus/bus"
	usmqtt "github.com/bronystylecrazy/tokenbus/realtime/mqtt"
	"github.com/google/uuid"
)

const defaultBuffer = 64

type Transport struct {
	broker usmqtt.Broker
	buffer int
}

var _ bus.Transport = (*Transport)(nil)

func New(broker usmqtt.Broker, buffer int) *Transport {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Transport{broker: broker, buffer: buffer}
}

// CreateTopic reports every topic as existing: MQTT topics come into being
// on first publish.
func (t *Transport) CreateTopic(context.Context, string) error {
	return bus.ErrTopicExists
}

func (t *Transport) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if key == "" {
		key = "_"
	}
	if err := t.broker.Publish(ctx, topic+"/"+key, payload, usmqtt.QoS1); err != nil {
		return fmt.Errorf("mqttbus: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins group. The embedded broker delivers inline to a single
// process, so it gets the plain filter; remote brokers get a shared one.
func (t *Transport) Subscribe(_ context.Context, topic, group string) (bus.Subscription, error) {
	filter := topic + "/+"
	if _, embedded := t.broker.(*usmqtt.Server); !embedded {
		filter = usmqtt.SharedFilter(group, filter)
	}
	sub := &subscription{
		broker:   t.broker,
		topic:    topic,
		filter:   filter,
		messages: make(chan bus.Message, t.buffer),
		closed:   make(chan struct{}),
	}
	if err := t.broker.Subscribe(filter, sub.deliver); err != nil {
		return nil, fmt.Errorf("mqttbus: subscribe %s: %w", filter, err)
	}
	return sub, nil
}

type subscription struct {
	broker   usmqtt.Broker
	topic    string
	filter   string
	messages chan bus.Message
	closed   chan struct{}
	once     sync.Once

	// unacked holds fetched messages in delivery order until Ack. The broker
	// does not redeliver them while the session lives.
	mu      sync.Mutex
	unacked []bus.Message
}

// deliver blocks the broker's dispatch while the buffer is full, which holds
// back the QoS1 ack and so throttles the broker.
func (s *subscription) deliver(m usmqtt.Message) {
	key := strings.TrimPrefix(m.Topic, s.topic+"/")
	msg := bus.Message{
		ID:      uuid.NewString(),
		Topic:   s.topic,
		Key:     key,
		Payload: append([]byte(nil), m.Payload...),
		Receipt: m,
	}
	select {
	case s.messages <- msg:
	case <-s.closed:
	}
}

func (s *subscription) Fetch(ctx context.Context) ([]bus.Message, error) {
	select {
	case <-s.closed:
		return nil, bus.ErrClosed
	default:
	}
	s.mu.Lock()
	again := slices.Clone(s.unacked)
	s.mu.Unlock()

	var fresh []bus.Message
	if len(again) == 0 {
		select {
		case <-s.closed:
			return nil, bus.ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-s.messages:
			fresh = append(fresh, msg)
		}
	}
drain:
	for len(fresh) < cap(s.messages) {
		select {
		case more := <-s.messages:
			fresh = append(fresh, more)
		default:
			break drain
		}
	}
	s.mu.Lock()
	s.unacked = append(s.unacked, fresh...)
	s.mu.Unlock()
	return append(again, fresh...), nil
}

func (s *subscription) Ack(_ context.Context, msg bus.Message) error {
	m, ok := msg.Receipt.(usmqtt.Message)
	if !ok {
		return fmt.Errorf("mqttbus: message %s has no mqtt receipt", msg.ID)
	}
	s.mu.Lock()
	s.unacked = slices.DeleteFunc(s.unacked, func(u bus.Message) bool { return u.ID == msg.ID })
	s.mu.Unlock()
	return s.broker.Ack(m)
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.broker.Unsubscribe(s.filter)
	})
	return err
}
