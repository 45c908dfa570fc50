package lock

import (
	"context"
	"sync"
	"time"

	"rispay/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Guard 防止同一个任务重叠执行
//
// TryAcquire 拿不到锁时返回 ok=false，调用方应当直接跳过本次执行。
// 拿到锁后必须调用 release。
type Guard interface {
	TryAcquire(ctx context.Context, name string) (release func(), ok bool, err error)
}

// RedisGuard 多实例部署时使用
type RedisGuard struct {
	client   *redis.Client
	ttl      time.Duration
	newToken func() string
}

// NewRedisGuard ttl 应当大于任务最长的执行时间
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		client:   client,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

func JobLockKey(name string) string {
	return "job:lock:" + name
}

func (g *RedisGuard) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	l := NewDistributedLock(g.client, JobLockKey(name), g.newToken(), g.ttl)
	ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		// 任务的 ctx 可能已经取消，释放锁用独立的 ctx
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Unlock(unlockCtx); err != nil {
			logger.Warnf("[Lock] 释放任务锁失败: key=%s, err=%v", l.key, err)
		}
	}
	return release, true, nil
}

// LocalGuard 单实例部署时使用，只在进程内互斥
type LocalGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{running: make(map[string]bool)}
}

func (g *LocalGuard) TryAcquire(_ context.Context, name string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[name] {
		return nil, false, nil
	}
	g.running[name] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, name)
			g.mu.Unlock()
		})
	}
	return release, true, nil
}
