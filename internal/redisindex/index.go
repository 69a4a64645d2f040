// Package redisindex implements the fast-access token index on top of
// go-redis/v9, following the client-wrapping convention of
// third_party/cache.
package redisindex

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/authflow/sessionengine/pkg/authsession"
)

const (
	accessPrefix  = "jwt:access:"
	refreshPrefix = "jwt:refresh:"

	// minTTL is the floor applied to every written key, guarding against a
	// near-expired issuance producing a zero or negative TTL (which Redis
	// would treat as "expire immediately" or reject outright).
	minTTL = time.Second
)

// Index is the go-redis-backed FastIndex (pkg/authsession/store). Values
// are the empty string; only key presence is meaningful.
type Index struct {
	client *redis.Client
}

// New wraps an already-connected *redis.Client, mirroring
// third_party/cache.RedisClient.GetClient.
func New(client *redis.Client) *Index {
	return &Index{client: client}
}

func accessKey(encoded authsession.EncodedToken) string  { return accessPrefix + encoded.String() }
func refreshKey(encoded authsession.EncodedToken) string { return refreshPrefix + encoded.String() }

func ttlFor(expiration authsession.Expiration, now time.Time) time.Duration {
	ttl := expiration.Time().Sub(now)
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// Save writes both the access and refresh presence keys for pair,
// atomically via a MULTI/EXEC pipeline, so a reader never observes the
// write half-applied. Each key gets its own TTL, so the access key
// expires before the refresh key.
func (i *Index) Save(ctx context.Context, pair authsession.JwtPair) error {
	now := time.Now()
	access := pair.Access()
	refresh := pair.Refresh()

	pipe := i.client.TxPipeline()
	pipe.Set(ctx, accessKey(access.Encoded()), "", ttlFor(access.Expiration(), now))
	pipe.Set(ctx, refreshKey(refresh.Encoded()), "", ttlFor(refresh.Expiration(), now))

	if _, err := pipe.Exec(ctx); err != nil {
		logx.Errorf("authsession/redisindex: save pair failed: %v", err)
		return fmt.Errorf("authsession/redisindex: save pair: %w", err)
	}
	return nil
}

// Delete removes both presence keys for pair, atomically.
func (i *Index) Delete(ctx context.Context, pair authsession.JwtPair) error {
	pipe := i.client.TxPipeline()
	pipe.Del(ctx, accessKey(pair.Access().Encoded()))
	pipe.Del(ctx, refreshKey(pair.Refresh().Encoded()))

	if _, err := pipe.Exec(ctx); err != nil {
		logx.Errorf("authsession/redisindex: delete pair failed: %v", err)
		return fmt.Errorf("authsession/redisindex: delete pair: %w", err)
	}
	return nil
}

func (i *Index) exists(ctx context.Context, key string) (bool, error) {
	n, err := i.client.Exists(ctx, key).Result()
	if err != nil {
		logx.Errorf("authsession/redisindex: exists check failed: %v", err)
		return false, fmt.Errorf("authsession/redisindex: exists: %w", err)
	}
	return n > 0, nil
}

// AccessExists reports whether the access-token presence key exists.
func (i *Index) AccessExists(ctx context.Context, encoded authsession.EncodedToken) (bool, error) {
	return i.exists(ctx, accessKey(encoded))
}

// RefreshExists reports whether the refresh-token presence key exists.
func (i *Index) RefreshExists(ctx context.Context, encoded authsession.EncodedToken) (bool, error) {
	return i.exists(ctx, refreshKey(encoded))
}
