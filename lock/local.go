package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type localEntry struct {
	token    string
	expireAt time.Time
}

// LocalLock 进程内锁（单实例模式），到期自动失效
type LocalLock struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

// NewLocalLock 创建进程内锁
func NewLocalLock() *LocalLock {
	return &LocalLock{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

func (l *LocalLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expireAt) {
		return "", false, nil
	}
	token := generateToken()
	l.held[key] = localEntry{token: token, expireAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock 只释放 token 匹配且未过期的锁，过期后被他人重新获取的锁保持不变
func (l *LocalLock) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.held[key]
	if !ok || e.token != token {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	delete(l.held, key)
	if !l.now().Before(e.expireAt) {
		return fmt.Errorf("%w (expired): %s", ErrNotHeld, key)
	}
	return nil
}

func (l *LocalLock) Close() error {
	return nil
}
