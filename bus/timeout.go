package bus

import (
	"context"
	"time"
)

type timeoutPublisher struct {
	Transport
	timeout time.Duration
}

// WithPublishTimeout bounds every Publish on t by d.
func WithPublishTimeout(t Transport, d time.Duration) Transport {
	if d <= 0 {
		return t
	}
	return timeoutPublisher{Transport: t, timeout: d}
}

func (p timeoutPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Transport.Publish(ctx, topic, key, payload)
}

// RemoveGroup forwards to the wrapped transport when it tracks groups.
func (p timeoutPublisher) RemoveGroup(ctx context.Context, topic, group string) error {
	if r, ok := p.Transport.(GroupRemover); ok {
		return r.RemoveGroup(ctx, topic, group)
	}
	return nil
}
