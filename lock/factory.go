package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"leadwatch/config"
	"leadwatch/logger"
	"leadwatch/metrics"
)

// NewDistributedLock 根据配置创建锁
// 未启用分布式锁时返回进程内锁（单实例模式）
func NewDistributedLock(cfg *config.Config) (DistributedLock, error) {
	lc := cfg.DistributedLock
	if !lc.Enabled {
		return Instrument(NewLocalLock()), nil
	}

	switch lc.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     lc.Redis.Addr,
			Password: lc.Redis.Password,
			DB:       lc.Redis.DB,
			PoolSize: lc.Redis.PoolSize,
		})
		rl := NewRedisLock(client, lc.Prefix)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rl.Ping(ctx); err != nil {
			// 启动时连不上不阻止启动，获取锁失败时采集周期会降级执行
			logger.Warn("⚠️ Redis 锁连接失败 (%s): %v", lc.Redis.Addr, err)
		} else {
			logger.Info("🔒 已启用 Redis 分布式锁 (%s)", lc.Redis.Addr)
		}
		return Instrument(rl), nil

	default:
		return nil, fmt.Errorf("unsupported lock type: %s", lc.Type)
	}
}

// instrumented 记录获取结果与持有时长
type instrumented struct {
	DistributedLock
	mu         sync.Mutex
	acquiredAt map[string]time.Time // token -> 获取时间
}

// Instrument 为锁增加 Prometheus 指标
func Instrument(l DistributedLock) DistributedLock {
	return &instrumented{DistributedLock: l, acquiredAt: make(map[string]time.Time)}
}

func (i *instrumented) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, ok, err := i.DistributedLock.TryLock(ctx, key, ttl)
	pm := metrics.GetPrometheusMetrics()
	switch {
	case err != nil:
		pm.RecordLockAcquire(key, "error")
	case ok:
		pm.RecordLockAcquire(key, "acquired")
		i.mu.Lock()
		i.acquiredAt[token] = time.Now()
		i.mu.Unlock()
	default:
		pm.RecordLockAcquire(key, "conflict")
	}
	return token, ok, err
}

func (i *instrumented) Unlock(ctx context.Context, key, token string) error {
	i.mu.Lock()
	at, ok := i.acquiredAt[token]
	delete(i.acquiredAt, token)
	i.mu.Unlock()
	if ok {
		metrics.GetPrometheusMetrics().RecordLockHoldDuration(key, time.Since(at))
	}
	return i.DistributedLock.Unlock(ctx, key, token)
}
