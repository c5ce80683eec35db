package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "lock:"

var ErrNotAcquired = errors.New("lock not acquired")

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 Redis 的分布式互斥锁
type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewRedisLocker 创建锁，ttl 为持有上限，wait 为等待上限
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		interval: 25 * time.Millisecond,
		logger:   slog.Default(),
	}
}

// WithLogger 设置释放失败时使用的日志
func (l *RedisLocker) WithLogger(logger *slog.Logger) *RedisLocker {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Lock 获取锁，返回的 unlock 可重复调用
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = keyPrefix + key
	token := uuid.NewString()

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// 请求上下文可能已取消，释放使用独立的短超时
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			released, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int()
			switch {
			case err != nil:
				// 锁会保留到 TTL 过期
				l.logger.Error("failed to release lock", "key", key, "ttl", l.ttl, "error", err)
			case released == 0:
				l.logger.Warn("lock expired before release", "key", key, "ttl", l.ttl)
			}
		})
	}
	return unlock, nil
}
