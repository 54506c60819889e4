package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
	"metal_price_tracker/pkg/utils"
)

// ==================== 每日更新流水线 ====================

// RunSummary 一次运行的结果
type RunSummary struct {
	RunID        string                     `json:"run_id"`
	Trigger      string                     `json:"trigger"`
	RuleVersion  string                     `json:"rule_version"`
	StartedAt    time.Time                  `json:"started_at"`
	FinishedAt   time.Time                  `json:"finished_at"`
	Providers    []IngestResult             `json:"providers"`
	Ingested     int                        `json:"ingested"`
	PriceChanges []PriceChange              `json:"-"`
	Comparisons  int                        `json:"comparisons"`
	InStock      map[model.Competitor]int64 `json:"in_stock"`
	AlertSent    bool                       `json:"alert_sent"`
}

// PipelineDeps 流水线依赖
type PipelineDeps struct {
	Registry  *provider.Registry
	Reference config.ReferenceConfig
	HTTP      utils.ClientOptions
	Rules     *config.RuleStore

	Ingest     *IngestService
	Detector   *DetectorService
	Alert      *AlertService
	Matcher    *MatcherService
	References *ReferenceService

	CompRepo repository.CompetitorProductRepository
	RunRepo  repository.PipelineRunRepository
	Log      *logger.Logger
}

type PipelineService struct {
	deps PipelineDeps
	log  *logger.Logger
	now  func() time.Time
}

func NewPipelineService(deps PipelineDeps) *PipelineService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &PipelineService{deps: deps, log: log, now: time.Now}
}

// newEnv 每次运行重新加载规则
func (s *PipelineService) newEnv() (*provider.Env, error) {
	rules, err := s.deps.Rules.Reload()
	if err != nil {
		s.log.Warn("[Pipeline] 规则重新加载失败，沿用当前规则", "error", err)
		rules = s.deps.Rules.Current()
	}
	env, err := provider.NewEnv(rules, s.deps.HTTP, s.log)
	if err != nil {
		return nil, err
	}
	env.Recorder = provider.NewRecorder()
	env.Now = s.now
	return env, nil
}

// ValidateProviders 用当前规则构建一次全部已启用适配器；凭证缺失返回 provider.ErrMissingCredentials
func (s *PipelineService) ValidateProviders() error {
	env, err := provider.NewEnv(s.deps.Rules.Current(), s.deps.HTTP, s.log)
	if err != nil {
		return err
	}
	if err := s.deps.Registry.Validate(env); err != nil {
		return fmt.Errorf("供应商配置校验失败: %w", err)
	}
	return nil
}

// Run 快照 -> 逐个供应商采集 -> 变动检测 -> 告警 -> 重新匹配 -> 库存汇总
// 鉴权/配置错误或持久化错误会中止运行并标记失败
func (s *PipelineService) Run(ctx context.Context, trigger string) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
	}
	log := s.log.With("run_id", summary.RunID)

	env, err := s.newEnv()
	if err != nil {
		return nil, err
	}
	summary.RuleVersion = env.Rules.Version

	run := &model.PipelineRun{
		RunID:       summary.RunID,
		Trigger:     trigger,
		Status:      model.RunStatusRunning,
		RuleVersion: summary.RuleVersion,
		StartedAt:   summary.StartedAt,
	}
	if err := s.deps.RunRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	log.Info("[Pipeline] 每日更新开始", "trigger", trigger, "rule_version", summary.RuleVersion)

	if err := s.execute(ctx, env, summary, log); err != nil {
		s.finish(summary, err)
		log.Error("[Pipeline] 每日更新失败", "error", err)
		return summary, err
	}

	s.finish(summary, nil)
	log.Info("[Pipeline] 每日更新完成",
		"ingested", summary.Ingested, "price_changes", len(summary.PriceChanges),
		"comparisons", summary.Comparisons, "in_stock", FormatInStock(summary.InStock),
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String())
	return summary, nil
}

func (s *PipelineService) execute(ctx context.Context, env *provider.Env, summary *RunSummary, log *logger.Logger) error {
	adapters, err := s.deps.Registry.Build(env)
	if err != nil {
		return err
	}

	// 快照必须早于任何写入
	previous, err := s.deps.Detector.CaptureSnapshot(ctx)
	if err != nil {
		return err
	}

	resolver := s.deps.Ingest.NewResolver()
	for _, adapter := range adapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.deps.Ingest.Ingest(ctx, env, resolver, adapter)
		if err != nil {
			return err
		}
		summary.Providers = append(summary.Providers, *result)
		summary.Ingested += result.Stored
	}

	summary.PriceChanges, err = s.deps.Detector.Record(ctx, previous)
	if err != nil {
		return err
	}
	if s.deps.Alert != nil {
		summary.AlertSent = s.deps.Alert.Notify(ctx, summary.PriceChanges)
	}

	summary.Comparisons, err = s.deps.Matcher.Regenerate(ctx)
	if err != nil {
		return err
	}

	summary.InStock, err = s.deps.CompRepo.CountInStockByCompetitor(ctx)
	if err != nil {
		return fmt.Errorf("统计库存失败: %w", err)
	}
	for _, c := range model.AllCompetitors {
		if n, ok := summary.InStock[c]; ok {
			log.Info("[Pipeline] 有货 SKU", "competitor", c, "count", n)
		}
	}
	return nil
}

// finish 使用独立 context，取消后也能写入结束状态
func (s *PipelineService) finish(summary *RunSummary, runErr error) {
	summary.FinishedAt = s.now()
	fields := map[string]interface{}{
		"finished_at":       summary.FinishedAt,
		"products_ingested": summary.Ingested,
		"price_changes":     len(summary.PriceChanges),
		"comparisons":       summary.Comparisons,
		"in_stock_summary":  FormatInStock(summary.InStock),
		"status":            model.RunStatusSucceeded,
	}
	if runErr != nil {
		fields["status"] = model.RunStatusFailed
		fields["error"] = runErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.deps.RunRepo.Finish(ctx, summary.RunID, fields); err != nil {
		s.log.Error("[Pipeline] 更新运行记录失败", "run_id", summary.RunID, "error", err)
	}
}

// FormatInStock "OVHCLOUD=12,TERASWITCH=30"，按供应商固定顺序
func FormatInStock(counts map[model.Competitor]int64) string {
	parts := make([]string, 0, len(counts))
	for _, c := range model.AllCompetitors {
		if n, ok := counts[c]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	return strings.Join(parts, ",")
}

// ==================== 单项导入 ====================

// ImportOne 只采集一个供应商并重新匹配，不做变动检测
func (s *PipelineService) ImportOne(ctx context.Context, competitor model.Competitor) (*IngestResult, error) {
	env, err := s.newEnv()
	if err != nil {
		return nil, err
	}
	adapter, err := s.deps.Registry.Get(env, competitor)
	if err != nil {
		return nil, err
	}
	result, err := s.deps.Ingest.Ingest(ctx, env, nil, adapter)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Matcher.Regenerate(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// ImportReference 导入基准厂商目录并重新匹配
func (s *PipelineService) ImportReference(ctx context.Context) (*ReferenceImportResult, error) {
	if s.deps.References == nil {
		return nil, errors.New("未配置基准产品服务")
	}
	env, err := s.newEnv()
	if err != nil {
		return nil, err
	}
	catalog, err := provider.NewReferenceCatalog(s.deps.Reference, env.Rules, s.deps.HTTP, env.Recorder)
	if err != nil {
		return nil, err
	}
	result, err := s.deps.References.Import(ctx, catalog)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Matcher.Regenerate(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// Competitors 已启用的供应商
func (s *PipelineService) Competitors() []model.Competitor {
	return s.deps.Registry.Enabled()
}
