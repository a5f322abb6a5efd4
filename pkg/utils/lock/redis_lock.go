package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLock 定义分布式锁接口
type DistributedLock interface {
	// Acquire reports whether the lock was taken; false means another holder
	// owns it until its ttl expires.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Release(ctx context.Context, key string) error
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock 基于 Redis SETNX 的实现
type RedisLock struct {
	client *redis.Client
	owner  string
}

// NewRedisLock creates a lock handle; owner identifies this process so a
// release never drops a lock re-acquired by someone else after expiry.
func NewRedisLock(client *redis.Client, owner string) *RedisLock {
	return &RedisLock{client: client, owner: owner}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+key, l.owner, ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.client, []string{"lock:" + key}, l.owner).Err()
}
