package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"metal_price_tracker/internal/cpu"
	"metal_price_tracker/internal/location"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
	"metal_price_tracker/pkg/storage"
)

// ==================== 竞品采集 ====================

// IngestResult 单个供应商的采集结果
type IngestResult struct {
	Competitor model.Competitor `json:"competitor"`
	Fetched    int              `json:"fetched"`
	Stored     int              `json:"stored"`
	Skipped    int              `json:"skipped"`
	Warning    string           `json:"warning,omitempty"`
}

// IngestOptions 采集选项
type IngestOptions struct {
	// EligibleOnly 入库前就过滤旧代 CPU
	EligibleOnly bool
	// ArchiveRaw 原始响应写入对象存储
	ArchiveRaw bool
}

// IngestService 拉取、归一化并写入竞品 SKU
type IngestService struct {
	compRepo repository.CompetitorProductRepository
	cityRepo repository.CityRepository
	store    storage.Store
	opts     IngestOptions
	log      *logger.Logger
}

func NewIngestService(
	compRepo repository.CompetitorProductRepository,
	cityRepo repository.CityRepository,
	store storage.Store,
	opts IngestOptions,
	log *logger.Logger,
) *IngestService {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestService{
		compRepo: compRepo,
		cityRepo: cityRepo,
		store:    store,
		opts:     opts,
		log:      log,
	}
}

// NewResolver 每次运行一个城市解析器
func (s *IngestService) NewResolver() *location.Resolver {
	return location.NewResolver(s.cityRepo, s.log)
}

// Ingest 采集单个供应商
// 鉴权/配置错误与持久化错误返回 error；临时拉取失败只产生告警，库中数据保持不变
func (s *IngestService) Ingest(ctx context.Context, env *provider.Env, resolver *location.Resolver, adapter provider.Adapter) (*IngestResult, error) {
	competitor := adapter.Competitor()
	result := &IngestResult{Competitor: competitor}
	log := s.log.With("competitor", competitor)
	if resolver == nil {
		resolver = s.NewResolver()
	}

	log.Info("[Ingest] 开始采集")
	entries, fetchErr := adapter.FetchCatalog(ctx)
	s.archive(ctx, env, competitor)

	if fetchErr != nil {
		if provider.IsFatal(fetchErr) {
			return nil, fmt.Errorf("采集 %s 失败: %w", competitor, fetchErr)
		}
		result.Warning = fetchErr.Error()
		log.Warn("[Ingest] 拉取目录失败，保留已有数据", "error", fetchErr)
		return result, nil
	}
	result.Fetched = len(entries)
	if len(entries) == 0 {
		result.Warning = "目录为空"
		log.Warn("[Ingest] 目录为空，保留已有数据")
		return result, nil
	}

	var classifier *cpu.Classifier
	if s.opts.EligibleOnly {
		c, err := cpu.NewClassifier(env.Rules.CPU)
		if err != nil {
			return nil, fmt.Errorf("构建 CPU 分类器失败: %w", err)
		}
		classifier = c
	}

	type dedupeKey struct {
		name   string
		cityID int64
	}
	seen := make(map[dedupeKey]bool, len(entries))
	now := env.Now()
	products := make([]model.CompetitorProduct, 0, len(entries))

	for _, entry := range entries {
		ref, ok := adapter.CityOf(entry)
		if !ok {
			result.Skipped++
			continue
		}
		specs, ok := adapter.SpecsOf(entry)
		if !ok {
			result.Skipped++
			continue
		}
		if classifier != nil && !classifier.IsEligible(specs.CPU) {
			result.Skipped++
			continue
		}

		city, err := resolver.ResolveCity(ctx, ref.Code, ref.Name, ref.Country)
		if err != nil {
			return nil, err
		}
		key := dedupeKey{name: specs.Name, cityID: city.ID}
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true

		stock := adapter.StockOf(entry)
		verified := now
		products = append(products, model.CompetitorProduct{
			Competitor:         competitor,
			Name:               specs.Name,
			CPU:                specs.CPU,
			CPUCores:           specs.CPUCores,
			RAMGB:              specs.RAMGB,
			StorageDescription: specs.Storage.Description,
			StorageTotalTB:     specs.Storage.TotalTB,
			NetworkGbps:        specs.NetworkGbps,
			PriceUSD:           specs.PriceUSD,
			CityID:             city.ID,
			SourceURL:          specs.SourceURL,
			InventoryURL:       specs.InventoryURL,
			InStock:            stock.InStock,
			Quantity:           stock.Quantity,
			LastVerified:       &verified,
			LastInventoryCheck: &verified,
		})
	}

	if len(products) == 0 {
		result.Warning = "没有有效条目"
		log.Warn("[Ingest] 没有有效条目，保留已有数据", "fetched", result.Fetched, "skipped", result.Skipped)
		return result, nil
	}

	var err error
	if provider.UsesUpsert(adapter) {
		err = s.compRepo.BatchUpsert(ctx, products)
	} else {
		err = s.compRepo.ReplaceForCompetitor(ctx, competitor, products)
	}
	if err != nil {
		return nil, fmt.Errorf("写入 %s 竞品失败: %w", competitor, err)
	}

	result.Stored = len(products)
	log.Info("[Ingest] 采集完成", "fetched", result.Fetched, "stored", result.Stored, "skipped", result.Skipped)
	return result, nil
}

// ==================== 原始响应归档 ====================

type rawArchive struct {
	Competitor model.Competitor       `json:"competitor"`
	CapturedAt time.Time              `json:"captured_at"`
	Responses  []provider.RawResponse `json:"responses"`
}

// RawArchiveKey raw/{competitor}/{date}.json
func RawArchiveKey(competitor model.Competitor, at time.Time) string {
	return fmt.Sprintf("raw/%s/%s.json", strings.ToLower(string(competitor)), at.Format("2006-01-02"))
}

// archive 归档失败不影响采集
func (s *IngestService) archive(ctx context.Context, env *provider.Env, competitor model.Competitor) {
	responses := env.Recorder.Take(competitor)
	if !s.opts.ArchiveRaw || s.store == nil || len(responses) == 0 {
		return
	}

	now := env.Now()
	data, err := json.Marshal(rawArchive{Competitor: competitor, CapturedAt: now, Responses: responses})
	if err != nil {
		s.log.Warn("[Ingest] 原始响应序列化失败", "competitor", competitor, "error", err)
		return
	}
	key := RawArchiveKey(competitor, now)
	if err := s.store.Put(ctx, key, data, "application/json"); err != nil {
		s.log.Warn("[Ingest] 原始响应归档失败", "competitor", competitor, "key", key, "error", err)
		return
	}
	s.log.Debug("[Ingest] 原始响应已归档", "competitor", competitor, "key", key, "responses", len(responses))
}
