package token

import (
	"strings"
	"time"
)

const (
	AlgRS256 = "RS256"
	AlgHS256 = "HS256"
)

// Config selects the signing scheme. RS256 needs a private key to issue and a
// public key (or the private key, or a JWKS URL) to verify; HS256 needs Secret
// on both sides.
type Config struct {
	Algorithm      string        `mapstructure:"algorithm" default:"RS256" validate:"oneof=RS256 HS256 rs256 hs256"`
	Secret         string        `mapstructure:"secret"`
	PrivateKey     string        `mapstructure:"private_key"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	PublicKey      string        `mapstructure:"public_key"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	JWKSURL        string        `mapstructure:"jwks_url"`
	KeyID          string        `mapstructure:"key_id"`
	Issuer         string        `mapstructure:"issuer" default:"tokenbus-identity"`
	Audience       string        `mapstructure:"audience" default:"tokenbus"`
	TTL            time.Duration `mapstructure:"ttl" default:"24h"`
	Leeway         time.Duration `mapstructure:"leeway" default:"0s"`
}

func (c Config) algorithm() string {
	alg := strings.ToUpper(strings.TrimSpace(c.Algorithm))
	if alg == "" {
		return AlgRS256
	}
	return alg
}

func (c Config) ttl() time.Duration {
	if c.TTL <= 0 {
		return 24 * time.Hour
	}
	return c.TTL
}
