// Package membus is an in-process bus transport with consumer-group and
// redelivery semantics matching the networked drivers, for tests.
package membus

import (
	"context"
	"slices"
	"sync"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/google/uuid"
)

type Bus struct {
	mu     sync.Mutex
	topics map[string]map[string]*group
}

type group struct {
	queue   []bus.Message
	notify  chan struct{}
	members map[*subscription]struct{}
}

var (
	_ bus.Transport    = (*Bus)(nil)
	_ bus.GroupRemover = (*Bus)(nil)
)

func New() *Bus {
	return &Bus{topics: make(map[string]map[string]*group)}
}

func (b *Bus) CreateTopic(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; ok {
		return bus.ErrTopicExists
	}
	b.topics[topic] = make(map[string]*group)
	return nil
}

// Publish appends to every group's queue. Topics are created on first use.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	groups, ok := b.topics[topic]
	if !ok {
		groups = make(map[string]*group)
		b.topics[topic] = groups
	}
	msg := bus.Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		Key:     key,
		Payload: slices.Clone(payload),
	}
	for _, g := range groups {
		g.queue = append(g.queue, msg)
		g.wake()
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, topic, groupName string) (bus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	groups, ok := b.topics[topic]
	if !ok {
		groups = make(map[string]*group)
		b.topics[topic] = groups
	}
	g, ok := groups[groupName]
	if !ok {
		g = &group{notify: make(chan struct{}), members: make(map[*subscription]struct{})}
		groups[groupName] = g
	}
	sub := &subscription{bus: b, group: g, closed: make(chan struct{})}
	g.members[sub] = struct{}{}
	return sub, nil
}

// RemoveGroup drops the group and its queue. Open subscriptions keep their
// in-flight messages but receive nothing new.
func (b *Bus) RemoveGroup(_ context.Context, topic, groupName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics[topic], groupName)
	return nil
}

// Groups lists the groups subscribed to topic.
func (b *Bus) Groups(topic string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.topics[topic]))
	for name := range b.topics[topic] {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Pending reports queued plus unacked messages for a group.
func (b *Bus) Pending(topic, groupName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.topics[topic][groupName]
	if !ok {
		return 0
	}
	n := len(g.queue)
	for m := range g.members {
		n += len(m.inflight)
	}
	return n
}

func (g *group) wake() {
	close(g.notify)
	g.notify = make(chan struct{})
}

type subscription struct {
	bus      *Bus
	group    *group
	inflight []bus.Message
	once     sync.Once
	closed   chan struct{}
}

// Fetch redelivers this member's unacked messages before handing out new ones.
func (s *subscription) Fetch(ctx context.Context) ([]bus.Message, error) {
	for {
		select {
		case <-s.closed:
			return nil, bus.ErrClosed
		default:
		}
		s.bus.mu.Lock()
		g := s.group
		if len(s.inflight) > 0 {
			out := slices.Clone(s.inflight)
			s.bus.mu.Unlock()
			return out, nil
		}
		if len(g.queue) > 0 {
			msg := g.queue[0]
			g.queue = g.queue[1:]
			s.inflight = append(s.inflight, msg)
			s.bus.mu.Unlock()
			return []bus.Message{msg}, nil
		}
		notify := g.notify
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, bus.ErrClosed
		case <-notify:
		}
	}
}

func (s *subscription) Ack(_ context.Context, msg bus.Message) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.inflight = slices.DeleteFunc(s.inflight, func(m bus.Message) bool {
		return m.ID == msg.ID
	})
	return nil
}

// Close leaves the group. Unacked messages go back to the front of the queue
// for the remaining members.
func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.group.members, s)
		if len(s.inflight) > 0 {
			s.group.queue = append(s.inflight, s.group.queue...)
			s.inflight = nil
			s.group.wake()
		}
	})
	return nil
}
