package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 只有持有锁的实例才能释放
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLock Redis 分布式锁实现（多实例部署时保证同一时刻只有一个采集周期）
type RedisLock struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLock 创建 Redis 分布式锁
func NewRedisLock(client redis.UniversalClient, prefix string) *RedisLock {
	return &RedisLock{
		client: client,
		prefix: prefix,
	}
}

// generateToken 为每次获取生成唯一的 token
func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock 尝试获取锁，立即返回
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := generateToken()

	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock 释放锁，只删除 value 与 token 一致的 key
func (r *RedisLock) Unlock(ctx context.Context, key, token string) error {
	if token == "" {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	result, err := unlockScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis eval failed: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("%w (expired): %s", ErrNotHeld, key)
	}
	return nil
}

// Close 关闭连接
func (r *RedisLock) Close() error {
	return r.client.Close()
}

// Ping 检查连接
func (r *RedisLock) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
