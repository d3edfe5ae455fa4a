package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLease is a SET NX PX lock shared by all replicas.
type RedisLease struct {
	client redis.Cmdable
	key    string
	owner  string
}

// NewRedisLease creates a new RedisLease on key.
func NewRedisLease(client redis.Cmdable, key string) *RedisLease {
	return &RedisLease{client: client, key: key, owner: uuid.NewString()}
}

// releaseScript deletes the key only while it still holds our owner token, so
// a lease that expired and was taken by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes the lease for ttl if nobody holds it.
func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", l.key, err)
	}
	return ok, nil
}

// Release gives the lease up if this instance still holds it.
func (l *RedisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", l.key, err)
	}
	return nil
}
