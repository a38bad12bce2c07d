package web

import "time"

type Config struct {
	Name         string        `mapstructure:"name" default:"tokenbus"`
	Host         string        `mapstructure:"host" default:"0.0.0.0"`
	Port         int           `mapstructure:"port" default:"8080" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"5s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"20s"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" default:"30s"`
}
