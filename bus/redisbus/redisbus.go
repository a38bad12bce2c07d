// Package redisbus maps the bus onto Redis Streams: a topic is a stream and a
// consumer group is a stream consumer group.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/caching/rd"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"
	// provisionGroup exists only so topic creation is a single atomic command
	// with a structured "already exists" reply.
	provisionGroup = "tokenbus-provision"
)

type Transport struct {
	client rd.StreamManager
	cfg    Config
}

var (
	_ bus.Transport    = (*Transport)(nil)
	_ bus.GroupRemover = (*Transport)(nil)
)

func New(client rd.StreamManager, cfg Config) *Transport {
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-" + uuid.NewString()
	}
	if cfg.Count <= 0 {
		cfg.Count = 16
	}
	if cfg.Block <= 0 {
		// A zero BLOCK waits forever and would pin Stop.
		cfg.Block = 2 * time.Second
	}
	return &Transport{client: client, cfg: cfg}
}

func isBusyGroup(err error) bool {
	return redis.HasErrorPrefix(err, "BUSYGROUP")
}

func (t *Transport) CreateTopic(ctx context.Context, topic string) error {
	err := t.client.XGroupCreateMkStream(ctx, topic, provisionGroup, "$").Err()
	if isBusyGroup(err) {
		return bus.ErrTopicExists
	}
	return err
}

func (t *Transport) Publish(ctx context.Context, topic, key string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{fieldKey: key, fieldPayload: payload},
	}
	if t.cfg.MaxLen > 0 {
		args.MaxLen = t.cfg.MaxLen
		args.Approx = true
	}
	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redisbus: xadd %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, topic, group string) (bus.Subscription, error) {
	err := t.client.XGroupCreateMkStream(ctx, topic, group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("redisbus: create group %s/%s: %w", topic, group, err)
	}
	return &subscription{
		client:      t.client,
		cfg:         t.cfg,
		topic:       topic,
		group:       group,
		recheck:     true,
		outstanding: make(map[string]struct{}),
		lastClaim:   time.Now(),
	}, nil
}

// RemoveGroup destroys the stream group together with its pending entries.
func (t *Transport) RemoveGroup(ctx context.Context, topic, group string) error {
	if err := t.client.XGroupDestroy(ctx, topic, group).Err(); err != nil {
		return fmt.Errorf("redisbus: destroy group %s/%s: %w", topic, group, err)
	}
	return nil
}

type subscription struct {
	client rd.StreamManager
	cfg    Config
	topic  string
	group  string

	mu          sync.Mutex
	closed      bool
	recheck     bool
	outstanding map[string]struct{}
	lastClaim   time.Time
}

// Fetch reads this consumer's pending entries first, so anything delivered
// but not acked is retried before new entries are taken.
func (s *subscription) Fetch(ctx context.Context) ([]bus.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, bus.ErrClosed
	}
	pendingFirst := s.recheck || len(s.outstanding) > 0
	claim := s.cfg.ClaimIdle > 0 && time.Since(s.lastClaim) >= s.cfg.ClaimIdle
	s.mu.Unlock()

	if claim {
		if msgs, err := s.claimStale(ctx); err != nil || len(msgs) > 0 {
			return msgs, err
		}
	}
	if pendingFirst {
		msgs, err := s.read(ctx, "0", -1)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.recheck = false
		s.mu.Unlock()
		if len(msgs) > 0 {
			return msgs, nil
		}
	}
	return s.read(ctx, ">", s.cfg.Block)
}

func (s *subscription) read(ctx context.Context, id string, block time.Duration) ([]bus.Message, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.topic, id},
		Count:    s.cfg.Count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisbus: xreadgroup %s: %w", s.topic, err)
	}
	var out []bus.Message
	for _, stream := range streams {
		out = append(out, s.convert(stream.Messages)...)
	}
	return out, nil
}

// claimStale takes over entries another consumer of the group left pending
// for longer than ClaimIdle.
func (s *subscription) claimStale(ctx context.Context) ([]bus.Message, error) {
	s.mu.Lock()
	s.lastClaim = time.Now()
	s.mu.Unlock()
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.topic,
		Group:    s.group,
		Consumer: s.cfg.Consumer,
		MinIdle:  s.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    s.cfg.Count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redisbus: xautoclaim %s: %w", s.topic, err)
	}
	return s.convert(msgs), nil
}

func (s *subscription) convert(entries []redis.XMessage) []bus.Message {
	out := make([]bus.Message, 0, len(entries))
	for _, entry := range entries {
		key, _ := entry.Values[fieldKey].(string)
		payload, _ := entry.Values[fieldPayload].(string)
		out = append(out, bus.Message{
			ID:      entry.ID,
			Topic:   s.topic,
			Key:     key,
			Payload: []byte(payload),
			Receipt: entry.ID,
		})
	}
	s.mu.Lock()
	for _, m := range out {
		s.outstanding[m.ID] = struct{}{}
	}
	s.mu.Unlock()
	return out
}

func (s *subscription) Ack(ctx context.Context, msg bus.Message) error {
	if err := s.client.XAck(ctx, s.topic, s.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("redisbus: xack %s: %w", msg.ID, err)
	}
	s.mu.Lock()
	delete(s.outstanding, msg.ID)
	s.mu.Unlock()
	return nil
}

func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
