package mqttbus_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/bus/mqttbus"
	usmqtt "github.com/bronystylecrazy/tokenbus/realtime/mqtt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTransport(t *testing.T) *mqttbus.Transport {
	t.Helper()
	server := usmqtt.NewServer(nil)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop(context.Background()) })
	return mqttbus.New(server, 8)
}

func TestTopicsAlwaysExist(t *testing.T) {
	tr := newTransport(t)
	require.ErrorIs(t, tr.CreateTopic(t.Context(), "token-validation-request"), bus.ErrTopicExists)
	require.NoError(t, bus.EnsureTopics(t.Context(), tr, zap.NewNop(), "token-validation-request"))
}

func TestKeyTravelsInTopicLevel(t *testing.T) {
	tr := newTransport(t)
	sub, err := tr.Subscribe(t.Context(), "token-validation-response", "orders")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.Publish(t.Context(), "token-validation-response", "req-42", []byte("payload")))

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	msgs, err := sub.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "req-42", msgs[0].Key)
	require.Equal(t, "token-validation-response", msgs[0].Topic)
	require.Equal(t, []byte("payload"), msgs[0].Payload)
	require.NoError(t, sub.Ack(t.Context(), msgs[0]))
}

func TestFetchHonoursContextAndClose(t *testing.T) {
	tr := newTransport(t)
	sub, err := tr.Subscribe(t.Context(), "t", "g")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = sub.Fetch(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, sub.Close())
	_, err = sub.Fetch(t.Context())
	require.ErrorIs(t, err, bus.ErrClosed)
}

func TestAckRequiresMQTTReceipt(t *testing.T) {
	tr := newTransport(t)
	sub, err := tr.Subscribe(t.Context(), "t", "g")
	require.NoError(t, err)
	defer sub.Close()
	require.Error(t, sub.Ack(t.Context(), bus.Message{ID: "x"}))
}

func TestUnackedMessagesComeBackOnNextFetch(t *testing.T) {
	tr := newTransport(t)
	sub, err := tr.Subscribe(t.Context(), "t", "g")
	require.NoError(t, err)
	defer sub.Close()

	for _, p := range []string{"a", "b"} {
		require.NoError(t, tr.Publish(t.Context(), "t", p, []byte(p)))
	}
	var first []bus.Message
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()
		msgs, err := sub.Fetch(ctx)
		if err != nil {
			return false
		}
		first = msgs
		return len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Ack(t.Context(), first[0]))
	again, err := sub.Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, first[1].ID, again[0].ID)

	require.NoError(t, sub.Ack(t.Context(), again[0]))
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = sub.Fetch(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerRecoversBatchAfterTransientFailure(t *testing.T) {
	tr := newTransport(t)
	sub, err := tr.Subscribe(t.Context(), "token-validation-request", "identity")
	require.NoError(t, err)

	var calls atomic.Int32
	var mu sync.Mutex
	handled := map[string]int{}
	w := bus.NewWorker("requests", sub, func(_ context.Context, msg bus.Message) error {
		if calls.Add(1) == 1 {
			return errors.New("revocation store unavailable")
		}
		mu.Lock()
		handled[string(msg.Payload)]++
		mu.Unlock()
		return nil
	}, zap.NewNop(), bus.WithBackoff(10*time.Millisecond))

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, tr.Publish(t.Context(), "token-validation-request", p, []byte(p)))
	}
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return handled["a"] == 1 && handled["b"] == 1 && handled["c"] == 1
	}, 2*time.Second, 10*time.Millisecond)
}
