package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"leadwatch/config"
)

func TestLocalLockConflictAndExpiry(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	first, ok, err := l.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, first)

	_, ok, err = l.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他 key 不受影响
	_, ok, _ = l.TryLock(ctx, "other", time.Minute)
	assert.True(t, ok)

	// 过期后可重新获取
	now = now.Add(2 * time.Minute)
	second, ok, _ := l.TryLock(ctx, "collector:cycle", time.Minute)
	assert.True(t, ok)
	assert.NotEqual(t, first, second)

	require.NoError(t, l.Unlock(ctx, "collector:cycle", second))
	err = l.Unlock(ctx, "collector:cycle", second)
	assert.True(t, errors.Is(err, ErrNotHeld))
}

func TestLocalLockStaleUnlockKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	a, ok, err := l.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A 超时，B 接手
	now = now.Add(2 * time.Minute)
	b, ok, err := l.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A 迟到的释放不能删除 B 的锁
	err = l.Unlock(ctx, "collector:cycle", a)
	assert.True(t, errors.Is(err, ErrNotHeld))

	_, ok, err = l.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "B 仍持有锁时不应再被获取")

	require.NoError(t, l.Unlock(ctx, "collector:cycle", b))
	_, ok, _ = l.TryLock(ctx, "collector:cycle", time.Minute)
	assert.True(t, ok)
}

func TestFactoryDefaultsToLocalLock(t *testing.T) {
	cfg, err := config.LoadConfigFromBytes([]byte("{}"))
	require.NoError(t, err)

	l, err := NewDistributedLock(cfg)
	require.NoError(t, err)
	token, ok, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.NoError(t, l.Unlock(context.Background(), "k", token))

	cfg.DistributedLock.Enabled = true
	cfg.DistributedLock.Type = "etcd"
	_, err = NewDistributedLock(cfg)
	assert.Error(t, err)
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return redis.NewClient(&redis.Options{Addr: endpoint})
}

func TestRedisLock(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "leadwatch:test:")
	b := NewRedisLock(client, "leadwatch:test:")
	defer a.Close()

	token, ok, err := a.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = b.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 未持有锁的一方不能释放
	assert.True(t, errors.Is(b.Unlock(ctx, "collector:cycle", "bogus"), ErrNotHeld))
	assert.True(t, errors.Is(b.Unlock(ctx, "collector:cycle", ""), ErrNotHeld))

	require.NoError(t, a.Unlock(ctx, "collector:cycle", token))
	_, ok, err = b.TryLock(ctx, "collector:cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
