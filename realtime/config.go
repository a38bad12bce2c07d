package realtime

import (
	"time"

	"github.com/bronystylecrazy/tokenbus/config"
)

const (
	ModeEmbedded = "embedded"
	ModeExternal = "external"
)

type Config struct {
	Mode     string         `mapstructure:"mode" default:"embedded" validate:"oneof=embedded external"`
	Listener ListenerConfig `mapstructure:"listener"`
	Broker   BrokerConfig   `mapstructure:"broker"`
}

// ListenerConfig is the TCP listener of the embedded broker. An empty address
// keeps the broker in-process only.
type ListenerConfig struct {
	ID       string `mapstructure:"id" default:"t1"`
	Address  string `mapstructure:"address" default:":1883"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BrokerConfig struct {
	Endpoint       string          `mapstructure:"endpoint" default:"tcp://127.0.0.1:1883"`
	ClientID       string          `mapstructure:"client_id"`
	Username       string          `mapstructure:"username"`
	Password       string          `mapstructure:"password"`
	CleanSession   bool            `mapstructure:"clean_session" default:"false"`
	Keepalive      time.Duration   `mapstructure:"keepalive" default:"30s"`
	ConnectTimeout time.Duration   `mapstructure:"connect_timeout" default:"10s"`
	TLS            config.TLS      `mapstructure:"tls"`
}
