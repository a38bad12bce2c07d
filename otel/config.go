package otel

import (
	"net/url"
	"strings"
	"time"

	"github.com/bronystylecrazy/tokenbus/config"
)

type Config struct {
	Enabled     bool          `mapstructure:"enabled" default:"false"`
	ServiceName string        `mapstructure:"service_name" default:"tokenbus"`
	Namespace   string        `mapstructure:"namespace" default:"tokenbus"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Traces      SignalConfig  `mapstructure:"traces"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Logs        SignalConfig  `mapstructure:"logs"`
}

type OTLPConfig struct {
	Endpoint    string            `mapstructure:"endpoint" default:"localhost:4317"`
	Protocol    string            `mapstructure:"protocol" default:"grpc" validate:"omitempty,oneof=grpc http http/protobuf"`
	Headers     map[string]string `mapstructure:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout" default:"10s"`
	Compression string            `mapstructure:"compression" default:"gzip"`
	Insecure    bool              `mapstructure:"insecure"`
	TLS         config.TLS        `mapstructure:"tls"`
}

type SignalConfig struct {
	Exporter string `mapstructure:"exporter" default:"otlp" validate:"omitempty,oneof=otlp none"`
}

type MetricsConfig struct {
	Exporter string        `mapstructure:"exporter" default:"otlp" validate:"omitempty,oneof=otlp none"`
	Interval time.Duration `mapstructure:"interval" default:"10s"`
}

func (c Config) signalEnabled(exporter string) bool {
	return c.Enabled && !strings.EqualFold(strings.TrimSpace(exporter), "none")
}

func (c OTLPConfig) useHTTP() bool {
	return strings.HasPrefix(strings.ToLower(c.Protocol), "http")
}

func (c OTLPConfig) grpcEndpoint() string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if !strings.Contains(endpoint, "://") {
		return endpoint
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}

// httpEndpoint splits the endpoint into host and URL path.
func (c OTLPConfig) httpEndpoint() (string, string) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return "", ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return c.Endpoint, ""
	}
	return u.Host, strings.TrimSpace(u.Path)
}
