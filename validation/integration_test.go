package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/bus/mqttbus"
	"github.com/bronystylecrazy/tokenbus/bus/redisbus"
	"github.com/bronystylecrazy/tokenbus/bus/snsbus"
	"github.com/bronystylecrazy/tokenbus/cloud/awscfg"
	"github.com/bronystylecrazy/tokenbus/realtime"
	usmqtt "github.com/bronystylecrazy/tokenbus/realtime/mqtt"
	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/bronystylecrazy/tokenbus/testkit"
	"github.com/bronystylecrazy/tokenbus/validation"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// transports returns one bus.Transport for the calling service and one for
// the issuing service, both attached to the same real backend.
type transports func(t *testing.T, suite *testkit.Suite) (caller, issuer bus.Transport)

func redisTransports(t *testing.T, suite *testkit.Suite) (bus.Transport, bus.Transport) {
	rc := suite.StartRedis(testkit.RedisOptions{})
	client := redis.NewClient(rc.Config().Options())
	t.Cleanup(func() { _ = client.Close() })
	cfg := redisbus.Config{Block: 200 * time.Millisecond, MaxLen: 1000, ClaimIdle: time.Minute}
	return redisbus.New(client, cfg), redisbus.New(client, cfg)
}

func mqttTransports(t *testing.T, suite *testkit.Suite) (bus.Transport, bus.Transport) {
	emqx := suite.StartEMQX(testkit.EMQXOptions{})
	connect := func(id string) bus.Transport {
		broker, err := realtime.NewBroker(realtime.Config{Mode: realtime.ModeExternal, Broker: emqx.BrokerConfig(id)}, nil, zap.NewNop())
		require.NoError(t, err)
		require.IsType(t, &usmqtt.Client{}, broker)
		require.NoError(t, broker.Start(suite.Context()))
		t.Cleanup(func() { _ = broker.Stop(context.Background()) })
		return mqttbus.New(broker, 64)
	}
	return connect("orders-it"), connect("identity-it")
}

func snsTransports(t *testing.T, suite *testkit.Suite) (bus.Transport, bus.Transport) {
	ls := suite.StartLocalStack(testkit.LocalStackOptions{})
	awsCfg, err := awscfg.Load(suite.Context(), ls.Config())
	require.NoError(t, err)
	cfg := snsbus.Config{WaitTime: time.Second, MaxMessages: 10, VisibilityTimeout: 30 * time.Second}
	connect := func() bus.Transport {
		return snsbus.New(sns.NewFromConfig(awsCfg), sqs.NewFromConfig(awsCfg), cfg)
	}
	return connect(), connect()
}

func TestRoundTripIntegration(t *testing.T) {
	for name, open := range map[string]transports{
		"redis": redisTransports,
		"mqtt":  mqttTransports,
		"sns":   snsTransports,
	} {
		t.Run(name, func(t *testing.T) {
			suite := testkit.NewSuite(t)
			callerBus, issuerBus := open(t, suite)
			roundTrip(t, callerBus, issuerBus)
		})
	}
}

func roundTrip(t *testing.T, callerBus, issuerBus bus.Transport) {
	ctx := t.Context()
	log := zap.NewNop()
	codec, err := validation.NewCodec("json")
	require.NoError(t, err)
	issuer, err := token.NewIssuer(token.Config{Algorithm: token.AlgHS256, Secret: "it", TTL: time.Hour})
	require.NoError(t, err)
	store := revocation.NewMemoryStore()

	base := validation.Config{
		RequestTopic:  validation.DefaultRequestTopic,
		ResponseTopic: validation.DefaultResponseTopic,
		Timeout:       10 * time.Second,
		Codec:         "json",
	}
	identityCfg, ordersCfg := base, base
	identityCfg.Service = "identity"
	ordersCfg.Service = "orders"

	responder := validation.NewResponder(issuerBus, store, issuer.Verifier(), codec, identityCfg, log)
	require.NoError(t, responder.Start(ctx))
	t.Cleanup(func() { _ = responder.Stop(context.Background()) })

	require.NoError(t, bus.EnsureTopics(ctx, callerBus, log, base.RequestTopic, base.ResponseTopic))
	registry := validation.NewRegistry()
	listener := validation.NewListener(callerBus, registry, codec, ordersCfg, log)
	require.NoError(t, listener.Start(ctx))
	t.Cleanup(func() { _ = listener.Stop(context.Background()) })
	requester := validation.NewRequester(callerBus, registry, codec, ordersCfg, log)

	credential, _, err := issuer.Issue("user-1", "User")
	require.NoError(t, err)

	got := requester.Validate(ctx, credential)
	require.Equal(t, validation.Outcome{Valid: true, SubjectID: "user-1", Role: "User", Status: validation.StatusValid}, got)

	require.NoError(t, store.Revoke(ctx, credential))
	got = requester.Validate(ctx, credential)
	require.False(t, got.Valid)
	require.Equal(t, validation.StatusRevoked, got.Status)
	require.Zero(t, registry.Len())
}
