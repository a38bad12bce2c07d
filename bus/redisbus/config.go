package redisbus

import "time"

type Config struct {
	// Consumer names this process inside its group. Defaults to a random
	// per-process name, which means pending entries of a crashed process are
	// only recovered through ClaimIdle.
	Consumer  string        `mapstructure:"consumer"`
	MaxLen    int64         `mapstructure:"max_len" default:"10000"`
	Block     time.Duration `mapstructure:"block" default:"2s"`
	Count     int64         `mapstructure:"count" default:"16"`
	ClaimIdle time.Duration `mapstructure:"claim_idle" default:"1m"`
}
