package mqtt

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Server is an in-process broker. Local publishers and subscribers use the
// inline client; remote services connect through its listeners.
type Server struct {
	*mqtt.Server

	nextID atomic.Int32
	mu     sync.Mutex
	subs   map[string]int
}

var _ Broker = (*Server)(nil)

func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		Server: mqtt.New(&mqtt.Options{
			InlineClient: true,
			Logger:       log,
		}),
		subs: make(map[string]int),
	}
}

func (s *Server) Publish(_ context.Context, topic string, payload []byte, qos byte) error {
	return s.Server.Publish(topic, payload, false, qos)
}

func (s *Server) Subscribe(filter string, handler Handler) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	id := int(s.nextID.Add(1))
	s.mu.Lock()
	s.subs[filter] = id
	s.mu.Unlock()
	return s.Server.Subscribe(filter, id, func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		handler(Message{Topic: pk.TopicName, Payload: pk.Payload, QoS: pk.FixedHeader.Qos})
	})
}

func (s *Server) Unsubscribe(filter string) error {
	s.mu.Lock()
	id, ok := s.subs[filter]
	delete(s.subs, filter)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Server.Unsubscribe(filter, id)
}

// Ack is a no-op: inline deliveries never leave the process.
func (s *Server) Ack(Message) error {
	return nil
}

func (s *Server) Start(context.Context) error {
	return s.Server.Serve()
}

func (s *Server) Stop(context.Context) error {
	return s.Server.Close()
}
