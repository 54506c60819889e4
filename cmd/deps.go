package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/internal/service"
	"metal_price_tracker/internal/task"
	"metal_price_tracker/pkg/database"
	"metal_price_tracker/pkg/logger"
	"metal_price_tracker/pkg/mailer"
	"metal_price_tracker/pkg/storage"
	"metal_price_tracker/pkg/utils"
)

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *gorm.DB
	Rules    *config.RuleStore
	Store    storage.Store
	Redis    *redis.Client
	Repos    *Repositories
	Services *Services
	Tasks    *task.TaskManager
}

// Repositories 仓储集合
type Repositories struct {
	City       repository.CityRepository
	Reference  repository.ReferenceProductRepository
	Competitor repository.CompetitorProductRepository
	Comparison repository.ComparisonRepository
	History    repository.PriceHistoryRepository
	Run        repository.PipelineRunRepository
}

// Services 服务集合
type Services struct {
	Pricing    *service.PricingService
	Matcher    *service.MatcherService
	Detector   *service.DetectorService
	Alert      *service.AlertService
	Ingest     *service.IngestService
	Reference  *service.ReferenceService
	Competitor *service.CompetitorService
	Cleanup    *service.CleanupService
	Dashboard  *service.DashboardService
	Pipeline   *service.PipelineService
}

// initDependencies 按配置装配全部依赖；调用方负责 Close
func initDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	deps := &Dependencies{Config: cfg, Log: log}

	// 1. 规则
	deps.Rules, err = config.NewRuleStore(config.RuleLoader{Path: cfg.RulesFile})
	if err != nil {
		return nil, err
	}
	log.Info("[Init] 规则已加载", "version", deps.Rules.Current().Version, "file", cfg.RulesFile)

	// 2. 数据库
	deps.DB, err = database.Open(database.Options{DSN: cfg.Database.DSN, LogLevel: cfg.Database.LogLevel})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(deps.DB, model.Models()...); err != nil {
		return nil, err
	}

	// 3. 快照存储
	deps.Store, err = storage.New(ctx, storage.Config{
		Driver:    cfg.Snapshot.Driver,
		Bucket:    cfg.Snapshot.Bucket,
		Region:    cfg.Snapshot.Region,
		AccessKey: cfg.Snapshot.AccessKey,
		SecretKey: cfg.Snapshot.SecretKey,
		Endpoint:  cfg.Snapshot.Endpoint,
		Dir:       cfg.Snapshot.Dir,
		Prefix:    cfg.Snapshot.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化快照存储失败: %w", err)
	}

	// 4. Redis（可选）
	deps.Redis = initRedis(ctx, cfg.Redis, log)

	deps.Repos = initRepositories(deps.DB)
	deps.Services = initServices(deps)

	// 5. 已启用供应商缺少凭证时启动即失败
	if err := deps.Services.Pipeline.ValidateProviders(); err != nil {
		log.Error("[Init] 供应商凭证校验失败", "error", err)
		deps.Close()
		return nil, err
	}

	deps.Tasks = initTasks(deps)
	return deps, nil
}

// Close 释放连接
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		if err := database.Close(d.DB); err != nil {
			d.Log.Warn("[Init] 关闭数据库失败", "error", err)
		}
	}
	d.Log.Sync()
}

// initRedis 连接失败时退回进程内锁
func initRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("[Init] Redis 不可用，仅使用进程内运行锁", "addr", cfg.Addr, "error", err)
		_ = rdb.Close()
		return nil
	}
	log.Info("[Init] Redis 已连接", "addr", cfg.Addr)
	return rdb
}

func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		City:       repository.NewCityRepository(db),
		Reference:  repository.NewReferenceProductRepository(db),
		Competitor: repository.NewCompetitorProductRepository(db),
		Comparison: repository.NewComparisonRepository(db),
		History:    repository.NewPriceHistoryRepository(db),
		Run:        repository.NewPipelineRunRepository(db),
	}
}

func httpOptions(cfg config.HTTPConfig) utils.ClientOptions {
	return utils.ClientOptions{
		Timeout:      cfg.Timeout,
		UserAgent:    cfg.UserAgent,
		Proxy:        cfg.Proxy,
		RetryCount:   cfg.RetryCount,
		RetryWait:    cfg.RetryWait,
		RetryMaxWait: cfg.RetryMaxWait,
	}
}

func initServices(deps *Dependencies) *Services {
	cfg, repos, log := deps.Config, deps.Repos, deps.Log
	httpOpts := httpOptions(cfg.HTTP)

	matcher := service.NewMatcherService(repos.Reference, repos.Competitor, repos.Comparison, deps.Rules, cfg.Matching, log)
	references := service.NewReferenceService(repos.Reference, matcher, log)
	sender := mailer.NewResendSender(mailer.Config{APIKey: cfg.Mail.APIKey, BaseURL: cfg.Mail.BaseURL}, httpOpts)

	svc := &Services{
		Pricing:    service.NewPricingService(repos.Reference, deps.Rules),
		Matcher:    matcher,
		Detector:   service.NewDetectorService(repos.Competitor, repos.History, deps.Rules, log),
		Alert:      service.NewAlertService(sender, cfg.Mail, deps.Rules, log),
		Reference:  references,
		Competitor: service.NewCompetitorService(repos.Competitor, repos.City, matcher, log),
		Cleanup:    service.NewCleanupService(repos.Competitor, repos.City, deps.Rules, log),
		Ingest: service.NewIngestService(repos.Competitor, repos.City, deps.Store, service.IngestOptions{
			EligibleOnly: cfg.Matching.EligibleOnlyIngest,
			ArchiveRaw:   cfg.Snapshot.ArchiveRaw,
		}, log),
		Dashboard: service.NewDashboardService(service.DashboardDeps{
			RefRepo:        repos.Reference,
			CompRepo:       repos.Competitor,
			ComparisonRepo: repos.Comparison,
			HistoryRepo:    repos.History,
			CityRepo:       repos.City,
			RunRepo:        repos.Run,
			Rules:          deps.Rules,
			Log:            log,
		}),
	}

	svc.Pipeline = service.NewPipelineService(service.PipelineDeps{
		Registry:   provider.NewRegistry(cfg.Providers, deps.Store),
		Reference:  cfg.Reference,
		HTTP:       httpOpts,
		Rules:      deps.Rules,
		Ingest:     svc.Ingest,
		Detector:   svc.Detector,
		Alert:      svc.Alert,
		Matcher:    matcher,
		References: references,
		CompRepo:   repos.Competitor,
		RunRepo:    repos.Run,
		Log:        log,
	})
	return svc
}

func initTasks(deps *Dependencies) *task.TaskManager {
	var locker *redislock.Client
	if deps.Redis != nil {
		locker = redislock.New(deps.Redis)
	}
	return task.NewTaskManager(&task.TaskManagerDeps{
		Runner: deps.Services.Pipeline,
		Locker: locker,
		Log:    deps.Log,
	}, task.ConfigFrom(deps.Config.Schedule, deps.Config.Redis))
}
