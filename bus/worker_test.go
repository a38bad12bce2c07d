package bus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/bus/membus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerAcksHandledMessages(t *testing.T) {
	b := membus.New()
	sub, err := b.Subscribe(t.Context(), "t", "g")
	require.NoError(t, err)

	handled := make(chan string, 4)
	w := bus.NewWorker("test", sub, func(_ context.Context, msg bus.Message) error {
		handled <- string(msg.Payload)
		return nil
	}, zap.NewNop())
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop(context.Background())

	require.NoError(t, b.Publish(t.Context(), "t", "k", []byte("one")))
	require.NoError(t, b.Publish(t.Context(), "t", "k", []byte("two")))

	for _, want := range []string{"one", "two"} {
		select {
		case got := <-handled:
			require.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
	require.Eventually(t, func() bool { return b.Pending("t", "g") == 0 }, time.Second, 5*time.Millisecond)
}

func TestWorkerSkipsPoisonAndContinues(t *testing.T) {
	b := membus.New()
	sub, _ := b.Subscribe(t.Context(), "t", "g")

	handled := make(chan string, 4)
	w := bus.NewWorker("test", sub, func(_ context.Context, msg bus.Message) error {
		if string(msg.Payload) == "garbage" {
			return bus.Poison(errors.New("decode failed"))
		}
		handled <- string(msg.Payload)
		return nil
	}, zap.NewNop())
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop(context.Background())

	_ = b.Publish(t.Context(), "t", "k", []byte("garbage"))
	_ = b.Publish(t.Context(), "t", "k", []byte("good"))

	select {
	case got := <-handled:
		require.Equal(t, "good", got)
	case <-time.After(time.Second):
		t.Fatal("poison message halted the loop")
	}
}

func TestWorkerRetriesTransientFailureAfterBackoff(t *testing.T) {
	b := membus.New()
	sub, _ := b.Subscribe(t.Context(), "t", "g")

	var attempts atomic.Int32
	done := make(chan time.Duration, 1)
	start := time.Now()
	w := bus.NewWorker("test", sub, func(_ context.Context, msg bus.Message) error {
		if attempts.Add(1) == 1 {
			return errors.New("publish failed")
		}
		done <- time.Since(start)
		return nil
	}, zap.NewNop(), bus.WithBackoff(50*time.Millisecond))
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop(context.Background())

	_ = b.Publish(t.Context(), "t", "k", []byte("m"))
	select {
	case elapsed := <-done:
		require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
		require.EqualValues(t, 2, attempts.Load())
	case <-time.After(time.Second):
		t.Fatal("message was not retried")
	}
}

func TestWorkerStopIsPromptAndClosesSubscription(t *testing.T) {
	b := membus.New()
	sub, _ := b.Subscribe(t.Context(), "t", "g")
	w := bus.NewWorker("test", sub, func(context.Context, bus.Message) error { return nil }, zap.NewNop(),
		bus.WithBackoff(time.Hour))
	require.NoError(t, w.Start(t.Context()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	select {
	case <-w.Done():
	default:
		t.Fatal("loop still running after Stop")
	}
	_, err := sub.Fetch(t.Context())
	require.ErrorIs(t, err, bus.ErrClosed)
}

type failingProvisioner struct{ err error }

func (f failingProvisioner) CreateTopic(context.Context, string) error { return f.err }

func TestEnsureTopics(t *testing.T) {
	b := membus.New()
	require.NoError(t, bus.EnsureTopics(t.Context(), b, zap.NewNop(), "a", "b"))
	// Second run sees both topics as existing.
	require.NoError(t, bus.EnsureTopics(t.Context(), b, zap.NewNop(), "a", "b"))

	boom := errors.New("access denied")
	err := bus.EnsureTopics(t.Context(), failingProvisioner{err: boom}, zap.NewNop(), "a")
	require.ErrorIs(t, err, boom)

	exists := failingProvisioner{err: bus.ErrTopicExists}
	require.NoError(t, bus.EnsureTopics(t.Context(), exists, zap.NewNop(), "a"))
}

type slowTransport struct{ *membus.Bus }

func (s slowTransport) Publish(ctx context.Context, _, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithPublishTimeout(t *testing.T) {
	tr := bus.WithPublishTimeout(slowTransport{membus.New()}, 20*time.Millisecond)
	err := tr.Publish(context.Background(), "t", "k", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithPublishTimeoutKeepsGroupRemoval(t *testing.T) {
	b := membus.New()
	_, err := b.Subscribe(t.Context(), "t", "g")
	require.NoError(t, err)

	tr := bus.WithPublishTimeout(b, time.Second)
	r, ok := tr.(bus.GroupRemover)
	require.True(t, ok)
	require.NoError(t, r.RemoveGroup(t.Context(), "t", "g"))
	require.Empty(t, b.Groups("t"))
}
