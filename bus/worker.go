package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultBackoff = time.Second

// HandlerFunc processes one message. Returning nil acks it; an error wrapping
// ErrPoison acks and drops it; any other error leaves it unacked for
// redelivery and pauses the loop for the backoff.
type HandlerFunc func(ctx context.Context, msg Message) error

// Worker is one long-running consume loop over a subscription.
type Worker struct {
	name    string
	sub     Subscription
	handle  HandlerFunc
	log     *zap.Logger
	backoff time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

type WorkerOption func(*Worker)

func WithBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

func NewWorker(name string, sub Subscription, handle HandlerFunc, log *zap.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		name:    name,
		sub:     sub,
		handle:  handle,
		log:     log.With(zap.String("worker", name)),
		backoff: DefaultBackoff,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the loop. The loop runs until Stop, independent of ctx,
// which only bounds startup.
func (w *Worker) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
	w.log.Info("worker started")
	return nil
}

// Stop signals the loop, waits for it to drain the in-flight message, then
// releases the subscription.
func (w *Worker) Stop(ctx context.Context) error {
	var err error
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
			select {
			case <-w.done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		err = errors.Join(err, w.sub.Close())
		w.log.Info("worker stopped")
	})
	return err
}

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		msgs, err := w.sub.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			w.log.Error("fetch failed", zap.Error(err))
			if !w.pause(ctx) {
				return
			}
			continue
		}
		for i, msg := range msgs {
			if !w.process(ctx, msg) {
				// Leave the rest of the batch for redelivery.
				w.log.Debug("batch interrupted", zap.Int("skipped", len(msgs)-i-1))
				if !w.pause(ctx) {
					return
				}
				break
			}
		}
	}
}

// process reports whether the loop may continue with the next message.
func (w *Worker) process(ctx context.Context, msg Message) bool {
	err := w.handle(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrPoison):
		w.log.Warn("dropping undecodable message",
			zap.String("topic", msg.Topic),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	default:
		w.log.Error("handle failed",
			zap.String("topic", msg.Topic),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return false
	}
	if err := w.sub.Ack(ctx, msg); err != nil {
		w.log.Error("ack failed", zap.String("message_id", msg.ID), zap.Error(err))
		return false
	}
	return true
}

func (w *Worker) pause(ctx context.Context) bool {
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
