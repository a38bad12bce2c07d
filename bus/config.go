package bus

import "time"

const (
	DriverRedis = "redis"
	DriverMQTT  = "mqtt"
	DriverSNS   = "sns"
)

type Config struct {
	Driver         string        `mapstructure:"driver" default:"redis" validate:"oneof=redis mqtt sns"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" default:"5s"`
	Backoff        time.Duration `mapstructure:"backoff" default:"1s"`
}
