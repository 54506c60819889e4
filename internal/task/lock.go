package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"golang.org/x/sync/singleflight"

	"metal_price_tracker/internal/service"
	"metal_price_tracker/pkg/logger"
)

// ==================== RunLock 运行锁 ====================

const (
	runLockKey     = "pricetracker:pipeline"
	defaultLockTTL = time.Hour
)

// RunLock 保证同一时刻只有一次管线运行
// 进程内用 singleflight 合并并发触发，配置 Redis 时再加一层跨实例锁
type RunLock struct {
	group   singleflight.Group
	locker  *redislock.Client
	ttl     time.Duration
	running atomic.Bool
	log     *logger.Logger
}

// NewRunLock locker 可为 nil（单实例部署）
func NewRunLock(locker *redislock.Client, ttl time.Duration, log *logger.Logger) *RunLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RunLock{locker: locker, ttl: ttl, log: log}
}

// Running 当前进程内是否有运行中的管线
func (l *RunLock) Running() bool {
	return l.running.Load()
}

// Do 执行 fn；并发调用共享同一次运行的结果
func (l *RunLock) Do(ctx context.Context, fn func(ctx context.Context) (*service.RunSummary, error)) (*service.RunSummary, error) {
	v, err, shared := l.group.Do(runLockKey, func() (interface{}, error) {
		l.running.Store(true)
		defer l.running.Store(false)

		release, err := l.obtain(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		return fn(ctx)
	})
	if shared {
		l.log.Debug("[RunLock] 并发触发已合并到进行中的运行")
	}
	summary, _ := v.(*service.RunSummary)
	return summary, err
}

// obtain 获取 Redis 锁；未配置 Redis 时直接放行
func (l *RunLock) obtain(ctx context.Context) (func(), error) {
	if l.locker == nil {
		return func() {}, nil
	}

	lock, err := l.locker.Obtain(ctx, runLockKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.log.Warn("[RunLock] 其它实例正在运行管线")
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("获取 Redis 运行锁失败: %w", err)
	}

	return func() {
		// 运行的 ctx 可能已超时，释放用独立 ctx
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("[RunLock] 释放 Redis 运行锁失败", "error", err)
		}
	}, nil
}
