package testkit

import (
	"fmt"
	"time"

	"github.com/bronystylecrazy/tokenbus/realtime"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultEMQXImage          = "emqx/emqx:5.8.4"
	defaultEMQXMQTTPort       = "1883/tcp"
	defaultEMQXStartupTimeout = 2 * time.Minute
)

type EMQXOptions struct {
	Image          string
	StartupTimeout time.Duration
}

// EMQXContainer is an external broker with shared subscriptions, the
// deployment mqttbus uses for consumer groups.
type EMQXContainer struct {
	Container testcontainers.Container
	Host      string
	MQTTPort  string
}

func (s *Suite) StartEMQX(opts EMQXOptions) *EMQXContainer {
	s.t.Helper()
	opts = withEMQXDefaults(opts)

	c := s.StartContainer(testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{defaultEMQXMQTTPort},
		Env: map[string]string{
			"EMQX_AUTHENTICATION__1__ENABLE": "false",
		},
		WaitingFor: wait.ForListeningPort(defaultEMQXMQTTPort).WithStartupTimeout(opts.StartupTimeout),
	})

	return &EMQXContainer{
		Container: c,
		Host:      s.Host(c),
		MQTTPort:  s.MappedPort(c, defaultEMQXMQTTPort),
	}
}

func (c *EMQXContainer) Endpoint() string {
	return fmt.Sprintf("tcp://%s:%s", c.Host, c.MQTTPort)
}

// BrokerConfig connects a realtime client with the given id to the container.
func (c *EMQXContainer) BrokerConfig(clientID string) realtime.BrokerConfig {
	return realtime.BrokerConfig{
		Endpoint:       c.Endpoint(),
		ClientID:       clientID,
		CleanSession:   true,
		Keepalive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

func withEMQXDefaults(opts EMQXOptions) EMQXOptions {
	if opts.Image == "" {
		opts.Image = defaultEMQXImage
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultEMQXStartupTimeout
	}
	return opts
}
