package snsbus

import "time"

// Config tunes the SQS side of the driver. Region, endpoint and credentials
// come from the shared "aws" section.
type Config struct {
	// WaitTime is the SQS long-poll duration, at most 20s.
	WaitTime          time.Duration `mapstructure:"wait_time" default:"10s" validate:"lte=20s"`
	MaxMessages       int32         `mapstructure:"max_messages" default:"10" validate:"gte=1,lte=10"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" default:"30s"`
}
