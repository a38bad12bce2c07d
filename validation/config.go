package validation

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRequestTopic  = "token-validation-request"
	DefaultResponseTopic = "token-validation-response"
	DefaultTimeout       = 15 * time.Second
)

type Config struct {
	RequestTopic  string `mapstructure:"request_topic" default:"token-validation-request" validate:"required"`
	ResponseTopic string `mapstructure:"response_topic" default:"token-validation-response" validate:"required"`
	// Service names this deployment in requests and, for the responder, is
	// the consumer group.
	Service string `mapstructure:"service" default:"tokenbus" validate:"required"`
	// Group overrides the consumer group. Empty means the service name for
	// the responder and a per-instance group for the response listener.
	Group   string        `mapstructure:"group"`
	Timeout time.Duration `mapstructure:"timeout" default:"15s" validate:"gt=0"`
	Codec   string        `mapstructure:"codec" default:"json" validate:"oneof=json cbor"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) responderGroup() string {
	if c.Group != "" {
		return c.Group
	}
	return c.Service
}

// listenerGroup gives each instance its own group so every instance sees
// every response; the one holding the slot resolves it, the rest drop it.
func (c Config) listenerGroup() string {
	if c.Group != "" {
		return c.Group
	}
	return c.Service + "-" + uuid.NewString()[:8]
}
