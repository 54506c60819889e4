package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/internal/service"
	"metal_price_tracker/pkg/utils"
)

// ==================== 辅助函数 ====================

// blockingRunner 在 release 关闭前阻塞，记录调用次数
type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, trigger string) (*service.RunSummary, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return &service.RunSummary{RunID: "run-1", Trigger: trigger}, nil
}

func setupTaskTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取连接池失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.Models()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// ==================== RunLock 测试 ====================

func TestRunLock_CoalescesConcurrentRuns(t *testing.T) {
	runner := newBlockingRunner()
	lock := NewRunLock(nil, 0, nil)

	var wg sync.WaitGroup
	results := make([]*service.RunSummary, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary, err := lock.Do(context.Background(), func(ctx context.Context) (*service.RunSummary, error) {
				return runner.Run(ctx, model.RunTriggerManual)
			})
			assert.NoError(t, err)
			results[i] = summary
		}(i)
		if i == 0 {
			<-runner.started
			assert.True(t, lock.Running())
		}
	}

	// 第二个调用进入 singleflight 等待后再放行
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(1), runner.calls.Load())
	require.NotNil(t, results[0])
	assert.Same(t, results[0], results[1])
	assert.False(t, lock.Running())
}

func TestRunLock_PropagatesError(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("boom")
	close(runner.release)
	lock := NewRunLock(nil, time.Minute, nil)

	summary, err := lock.Do(context.Background(), func(ctx context.Context) (*service.RunSummary, error) {
		return runner.Run(ctx, model.RunTriggerCLI)
	})
	assert.Nil(t, summary)
	assert.EqualError(t, err, "boom")
	assert.False(t, lock.Running())
}

func TestRunLock_RedisUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	called := false
	lock := NewRunLock(redislock.New(rdb), time.Minute, nil)
	_, err := lock.Do(context.Background(), func(ctx context.Context) (*service.RunSummary, error) {
		called = true
		return &service.RunSummary{}, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "获取 Redis 运行锁失败")
	assert.False(t, errors.Is(err, ErrRunInProgress))
	assert.False(t, called)
}

// ==================== TaskManager 测试 ====================

func TestTaskManager_TriggerRun(t *testing.T) {
	runner := newBlockingRunner()
	tm := NewTaskManager(&TaskManagerDeps{Runner: runner}, &TaskManagerConfig{Enabled: false})

	require.NoError(t, tm.TriggerRun())
	<-runner.started

	assert.ErrorIs(t, tm.TriggerRun(), ErrRunInProgress)
	status := tm.Status()
	assert.Equal(t, true, status["running"])
	assert.Equal(t, false, status["scheduled"])
	assert.Contains(t, status, "last_manual_trigger")

	close(runner.release)
	assert.Eventually(t, func() bool { return !tm.lock.Running() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestTaskManager_NoRunner(t *testing.T) {
	tm := NewTaskManager(&TaskManagerDeps{}, nil)

	assert.ErrorIs(t, tm.TriggerRun(), ErrTaskDisabled)
	_, err := tm.RunNow(context.Background(), model.RunTriggerCLI)
	assert.ErrorIs(t, err, ErrTaskDisabled)
}

func TestTaskManager_StartStop(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *TaskManagerConfig
		wantErr   bool
		scheduled bool
	}{
		{name: "默认配置", cfg: DefaultConfig(), scheduled: true},
		{name: "未启用", cfg: &TaskManagerConfig{Enabled: false}, scheduled: false},
		{name: "非法 cron", cfg: &TaskManagerConfig{Enabled: true, Cron: "not a cron"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := NewTaskManager(&TaskManagerDeps{Runner: newBlockingRunner()}, tt.cfg)
			err := tm.Start()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheduled, tm.Status()["scheduled"])
			tm.Stop()
			assert.Equal(t, false, tm.Status()["scheduled"])
		})
	}
}

func TestTaskManager_StatusDuringStartStop(t *testing.T) {
	tm := NewTaskManager(&TaskManagerDeps{Runner: newBlockingRunner()}, DefaultConfig())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			assert.NoError(t, tm.Start())
			// 重复启动不重复注册
			assert.NoError(t, tm.Start())
			tm.Stop()
			tm.Stop()
		}
	}()

	for {
		select {
		case <-done:
			assert.Equal(t, false, tm.Status()["scheduled"])
			return
		default:
			status := tm.Status()
			if status["scheduled"] == true {
				assert.Contains(t, status, "cron")
			}
		}
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(
		config.ScheduleConfig{Enabled: true, Cron: "0 30 5 * * *", RunOnStart: true},
		config.RedisConfig{LockTTL: 10 * time.Minute},
	)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "0 30 5 * * *", cfg.Cron)
	assert.True(t, cfg.RunOnStart)
	assert.Equal(t, 2*time.Hour, cfg.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.LockTTL)
}

// ==================== 完整管线 ====================

func TestTaskManager_RunNowWithPipeline(t *testing.T) {
	db := setupTaskTestDB(t)
	ctx := context.Background()
	rules := config.StaticRuleStore(config.MustDefaultRules())

	refRepo := repository.NewReferenceProductRepository(db)
	compRepo := repository.NewCompetitorProductRepository(db)
	cityRepo := repository.NewCityRepository(db)
	matcher := service.NewMatcherService(refRepo, compRepo, repository.NewComparisonRepository(db), rules, config.MatchingConfig{IncludeOutOfStock: true}, nil)
	references := service.NewReferenceService(refRepo, matcher, nil)
	_, err := references.Seed(ctx)
	require.NoError(t, err)

	pipeline := service.NewPipelineService(service.PipelineDeps{
		Registry:   provider.NewRegistry(config.ProvidersConfig{Hetzner: config.HetznerConfig{Enabled: true}}, nil),
		HTTP:       utils.ClientOptions{},
		Rules:      rules,
		Ingest:     service.NewIngestService(compRepo, cityRepo, nil, service.IngestOptions{}, nil),
		Detector:   service.NewDetectorService(compRepo, repository.NewPriceHistoryRepository(db), rules, nil),
		Alert:      service.NewAlertService(nil, config.MailConfig{}, rules, nil),
		Matcher:    matcher,
		References: references,
		CompRepo:   compRepo,
		RunRepo:    repository.NewPipelineRunRepository(db),
	})

	tm := NewTaskManager(&TaskManagerDeps{Runner: pipeline}, nil)
	summary, err := tm.RunNow(ctx, model.RunTriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, model.RunTriggerCLI, summary.Trigger)
	assert.Equal(t, 20, summary.Ingested)
	assert.Equal(t, 10, summary.Comparisons)
	assert.False(t, summary.AlertSent)
}
