package task

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/service"
	"metal_price_tracker/pkg/logger"
)

// ==================== DailyUpdateTask 每日更新任务 ====================

// Runner 管线执行入口，由 service.PipelineService 实现
type Runner interface {
	Run(ctx context.Context, trigger string) (*service.RunSummary, error)
}

// DailyUpdateTask 按 cron 执行完整更新管线
// 快照 -> 抓取 -> 价格变动 -> 告警 -> 重新匹配
type DailyUpdateTask struct {
	runner  Runner
	lock    *RunLock
	cron    *cron.Cron
	entry   cron.EntryID
	spec    string
	timeout time.Duration
	log     *logger.Logger

	runOnStart   bool
	startupDelay time.Duration
}

// NewDailyUpdateTask 创建每日更新任务
func NewDailyUpdateTask(runner Runner, lock *RunLock, spec string, timeout time.Duration, log *logger.Logger) *DailyUpdateTask {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DailyUpdateTask{
		runner:       runner,
		lock:         lock,
		cron:         cron.New(cron.WithSeconds()),
		spec:         spec,
		timeout:      timeout,
		log:          log,
		startupDelay: 30 * time.Second,
	}
}

// SetRunOnStart 启动后延迟 delay 执行一次
func (t *DailyUpdateTask) SetRunOnStart(enabled bool, delay time.Duration) {
	t.runOnStart = enabled
	t.startupDelay = delay
}

// Start 启动定时任务
func (t *DailyUpdateTask) Start() error {
	if t.entry == 0 {
		id, err := t.cron.AddFunc(t.spec, func() { t.runOnce(model.RunTriggerCron) })
		if err != nil {
			t.log.Error("[DailyUpdateTask] 定时任务启动失败", "cron", t.spec, "error", err)
			return err
		}
		t.entry = id
	}

	if t.runOnStart {
		go func() {
			time.Sleep(t.startupDelay)
			t.log.Info("[DailyUpdateTask] 执行启动后首次更新...")
			t.runOnce(model.RunTriggerCron)
		}()
	}

	t.cron.Start()
	t.log.Info("[DailyUpdateTask] 已启动", "cron", t.spec)
	return nil
}

// Stop 停止任务，等待进行中的 cron 回调结束
func (t *DailyUpdateTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.log.Info("[DailyUpdateTask] 已停止")
}

// Run 同步执行一次管线
func (t *DailyUpdateTask) Run(ctx context.Context, trigger string) (*service.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.lock.Do(ctx, func(ctx context.Context) (*service.RunSummary, error) {
		return t.runner.Run(ctx, trigger)
	})
}

func (t *DailyUpdateTask) runOnce(trigger string) {
	if t.lock.Running() {
		t.log.Warn("[DailyUpdateTask] 上一次运行尚未结束，跳过本次", "trigger", trigger)
		return
	}

	start := time.Now()
	summary, err := t.Run(context.Background(), trigger)
	if errors.Is(err, ErrRunInProgress) {
		t.log.Warn("[DailyUpdateTask] 其它实例正在运行，跳过本次", "trigger", trigger)
		return
	}
	if err != nil {
		t.log.Error("[DailyUpdateTask] 更新失败", "trigger", trigger, "error", err, "elapsed", time.Since(start))
		return
	}
	t.log.Info("[DailyUpdateTask] 更新完成",
		"run_id", summary.RunID,
		"ingested", summary.Ingested,
		"comparisons", summary.Comparisons,
		"price_changes", len(summary.PriceChanges),
		"elapsed", time.Since(start),
	)
}
