package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/service"
	"metal_price_tracker/pkg/logger"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理每日更新任务与手动触发
type TaskManager struct {
	lock     *RunLock
	daily    *DailyUpdateTask
	enabled  bool
	started  atomic.Bool
	log      *logger.Logger

	mu       sync.Mutex
	lastTrig time.Time
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Runner Runner
	// Locker 为 nil 时只用进程内锁
	Locker *redislock.Client
	Log    *logger.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	Enabled      bool
	Cron         string
	RunOnStart   bool
	StartupDelay time.Duration
	Timeout      time.Duration
	LockTTL      time.Duration
}

// DefaultConfig 默认配置：每天 06:00 UTC
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		Enabled:      true,
		Cron:         "0 0 6 * * *",
		StartupDelay: 30 * time.Second,
		Timeout:      2 * time.Hour,
		LockTTL:      2 * time.Hour,
	}
}

// ConfigFrom 由应用配置生成任务配置
func ConfigFrom(schedule config.ScheduleConfig, redis config.RedisConfig) *TaskManagerConfig {
	cfg := DefaultConfig()
	cfg.Enabled = schedule.Enabled
	if schedule.Cron != "" {
		cfg.Cron = schedule.Cron
	}
	cfg.RunOnStart = schedule.RunOnStart
	if schedule.Timeout > 0 {
		cfg.Timeout = schedule.Timeout
	}
	if redis.LockTTL > 0 {
		cfg.LockTTL = redis.LockTTL
	}
	return cfg
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	lock := NewRunLock(deps.Locker, cfg.LockTTL, log)
	daily := NewDailyUpdateTask(deps.Runner, lock, cfg.Cron, cfg.Timeout, log)
	daily.SetRunOnStart(cfg.RunOnStart, cfg.StartupDelay)

	return &TaskManager{
		lock:    lock,
		daily:   daily,
		enabled: cfg.Enabled,
		log:     log,
	}
}

// ==================== 生命周期管理 ====================

// Start 启动定时任务；未启用时只保留手动触发
func (tm *TaskManager) Start() error {
	if !tm.enabled {
		tm.log.Info("[TaskManager] 定时更新未启用，仅支持手动触发")
		return nil
	}
	if !tm.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := tm.daily.Start(); err != nil {
		tm.started.Store(false)
		return err
	}
	return nil
}

// Stop 停止定时任务
func (tm *TaskManager) Stop() {
	if !tm.started.CompareAndSwap(true, false) {
		return
	}
	tm.daily.Stop()
}

// ==================== 手动触发接口 ====================

// TriggerRun 后台触发一次运行；已有运行时返回 ErrRunInProgress
func (tm *TaskManager) TriggerRun() error {
	if tm.daily.runner == nil {
		return ErrTaskDisabled
	}
	if tm.lock.Running() {
		return ErrRunInProgress
	}
	tm.mu.Lock()
	tm.lastTrig = time.Now()
	tm.mu.Unlock()
	go tm.daily.runOnce(model.RunTriggerManual)
	return nil
}

// RunNow 同步执行一次运行，供 CLI 使用
func (tm *TaskManager) RunNow(ctx context.Context, trigger string) (*service.RunSummary, error) {
	if tm.daily.runner == nil {
		return nil, ErrTaskDisabled
	}
	return tm.daily.Run(ctx, trigger)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]interface{} {
	started := tm.started.Load()
	status := map[string]interface{}{
		"scheduled": started,
		"running":   tm.lock.Running(),
	}
	if started {
		status["cron"] = tm.daily.spec
	}
	tm.mu.Lock()
	if !tm.lastTrig.IsZero() {
		status["last_manual_trigger"] = tm.lastTrig
	}
	tm.mu.Unlock()
	return status
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled  TaskError = "task is disabled"
	ErrRunInProgress TaskError = "a pipeline run is already in progress"
)
