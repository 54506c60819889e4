package middleware

import (
	"sync"
	"time"
)

// ==================== TriggerLimiter 手动触发限流器 ====================

// TriggerLimiter 手动触发冷却
// 防止频繁触发全量更新导致供应商接口限流
type TriggerLimiter struct {
	locks sync.Map // key -> *lockEntry
	now   func() time.Time
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewTriggerLimiter 创建限流器
func NewTriggerLimiter() *TriggerLimiter {
	return &TriggerLimiter{now: time.Now}
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Check 检查并占用冷却窗口
func (r *TriggerLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	if elapsed := now.Sub(entry.lastTime); !entry.lastTime.IsZero() && elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 释放冷却窗口（触发被拒绝时归还）
func (r *TriggerLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key ====================

// TriggerType 触发类型
type TriggerType string

const (
	TriggerPipeline    TriggerType = "pipeline"
	TriggerRecalculate TriggerType = "recalculate"
)

// DefaultIntervals 默认冷却间隔
var DefaultIntervals = map[TriggerType]time.Duration{
	TriggerPipeline:    10 * time.Minute,
	TriggerRecalculate: 10 * time.Second,
}

// GetInterval 获取触发类型的默认间隔
func GetInterval(t TriggerType) time.Duration {
	if interval, ok := DefaultIntervals[t]; ok {
		return interval
	}
	return time.Minute
}
