package revocation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash of CBOR records keyed by credential digest and a
// sorted set of the same digests scored by expiry in unix milliseconds.
type RedisStore struct {
	client  redis.Cmdable
	records string
	expiry  string
	opts    options
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.Cmdable, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = "tokenbus:revoked"
	}
	return &RedisStore{
		client:  client,
		records: prefix + ":records",
		expiry:  prefix + ":expiry",
		opts:    buildOptions(opts),
	}
}

func (s *RedisStore) Revoke(ctx context.Context, credential string) error {
	rec, err := newRecord(credential, s.opts.now())
	if err != nil {
		return err
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("revocation: encode record: %w", err)
	}
	expired, err := s.expired(ctx)
	if err != nil {
		return err
	}
	digest := Digest(credential)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.prune(ctx, pipe, expired)
		pipe.HSetNX(ctx, s.records, digest, data)
		pipe.ZAddNX(ctx, s.expiry, redis.Z{Score: float64(rec.ExpiresAt.UnixMilli()), Member: digest})
		return nil
	})
	if err != nil {
		return fmt.Errorf("revocation: revoke: %w", err)
	}
	return nil
}

// expired lists digests due for pruning. The read happens outside the
// transaction, so prune removes exactly these digests from both keys; a
// record written in between is left for the next pass.
func (s *RedisStore) expired(ctx context.Context) ([]string, error) {
	cutoff := strconv.FormatInt(s.opts.now().UnixMilli(), 10)
	digests, err := s.client.ZRangeByScore(ctx, s.expiry, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return nil, fmt.Errorf("revocation: scan expiry: %w", err)
	}
	return digests, nil
}

func (s *RedisStore) prune(ctx context.Context, pipe redis.Pipeliner, digests []string) {
	if len(digests) == 0 {
		return
	}
	members := make([]any, len(digests))
	for i, d := range digests {
		members[i] = d
	}
	pipe.HDel(ctx, s.records, digests...)
	pipe.ZRem(ctx, s.expiry, members...)
}

func (s *RedisStore) IsRevoked(ctx context.Context, credential string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.records, Digest(credential)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Compact(ctx context.Context) (int, error) {
	expired, err := s.expired(ctx)
	if err != nil || len(expired) == 0 {
		return 0, err
	}
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.prune(ctx, pipe, expired)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("revocation: compact: %w", err)
	}
	return len(expired), nil
}

func (s *RedisStore) Records(ctx context.Context) ([]Record, error) {
	raw, err := s.client.HGetAll(ctx, s.records).Result()
	if err != nil {
		return nil, fmt.Errorf("revocation: list: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for digest, data := range raw {
		var rec Record
		if err := cbor.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("revocation: decode %s: %w", digest, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	return s.client.HLen(ctx, s.records).Result()
}
