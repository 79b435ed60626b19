package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld 释放时锁已过期或不属于当前持有者
var ErrNotHeld = errors.New("lock not held")

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁，立即返回
	// 成功时返回本次持有的 token，ok=false 表示锁已被占用
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Unlock 释放锁，token 必须与获取时返回的一致
	Unlock(ctx context.Context, key, token string) error

	// Close 关闭连接
	Close() error
}
