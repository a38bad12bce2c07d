// Package revocation records credentials revoked before their natural expiry.
// A record lives exactly as long as the credential it blocks: every Revoke
// first prunes records whose expiry has passed.
package revocation

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/zeebo/blake3"
)

var ErrMalformedCredential = errors.New("revocation: malformed credential")

type Record struct {
	Credential string    `json:"credential" cbor:"1,keyasint"`
	RevokedAt  time.Time `json:"revokedAt" cbor:"2,keyasint"`
	ExpiresAt  time.Time `json:"expiresAt" cbor:"3,keyasint"`
}

// Store is safe for concurrent use. A Revoke that has returned is observed by
// every IsRevoked that starts after it; a check already in flight may miss it.
type Store interface {
	// Revoke fails with ErrMalformedCredential, storing nothing, when the
	// credential carries no decodable expiry.
	Revoke(ctx context.Context, credential string) error
	IsRevoked(ctx context.Context, credential string) (bool, error)
	// Compact deletes every record whose expiry has passed and reports how
	// many went.
	Compact(ctx context.Context) (int, error)
	Records(ctx context.Context) ([]Record, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newRecord(credential string, now time.Time) (Record, error) {
	expiresAt, err := token.ExpiryOf(credential)
	if err != nil {
		return Record{}, errors.Join(ErrMalformedCredential, err)
	}
	return Record{Credential: credential, RevokedAt: now.UTC(), ExpiresAt: expiresAt.UTC()}, nil
}

// Digest is the fixed-width key persistent stores index a credential by.
func Digest(credential string) string {
	sum := blake3.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
