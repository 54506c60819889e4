package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// ==================== 价格快照 ====================

// SnapshotKey 快照以 (供应商, 产品名, 城市名) 为键
type SnapshotKey struct {
	Competitor  model.Competitor
	ProductName string
	CityName    string
}

// SnapshotEntry 快照中的一条价格
type SnapshotEntry struct {
	ProductID int64
	PriceUSD  float64
}

// Snapshot 采集前后的竞品价格
type Snapshot map[SnapshotKey]SnapshotEntry

// BuildSnapshot products 需预加载 City
// 城市按名称取键：同一供应商两个机房解析到同名城市(如 OVH par 与 eu-west-par-a)时同名产品只保留后一条，
// 被覆盖的键通过 collisions 返回
func BuildSnapshot(products []model.CompetitorProduct) (snap Snapshot, collisions []SnapshotKey) {
	snap = make(Snapshot, len(products))
	for _, p := range products {
		cityName := ""
		if p.City != nil {
			cityName = p.City.Name
		}
		key := SnapshotKey{Competitor: p.Competitor, ProductName: p.Name, CityName: cityName}
		if _, dup := snap[key]; dup {
			collisions = append(collisions, key)
		}
		snap[key] = SnapshotEntry{
			ProductID: p.ID,
			PriceUSD:  p.PriceUSD,
		}
	}
	return snap, collisions
}

// ==================== 变动检测 ====================

// PriceChange 一次显著价格变动
type PriceChange struct {
	CompetitorProductID *int64
	Competitor          model.Competitor
	ProductName         string
	CityName            string
	OldPrice            float64
	NewPrice            float64
	ChangePercent       float64
}

// Increase 是否涨价
func (c PriceChange) Increase() bool {
	return c.ChangePercent > 0
}

// DetectChanges |变动百分比| 严格大于阈值才记录；新产品和旧价格为 0 的条目忽略
func DetectChanges(previous, current Snapshot, threshold float64) []PriceChange {
	var changes []PriceChange
	for key, cur := range current {
		prev, ok := previous[key]
		if !ok || prev.PriceUSD == 0 {
			continue
		}
		pct := (cur.PriceUSD - prev.PriceUSD) / prev.PriceUSD * 100
		if math.Abs(pct) <= threshold {
			continue
		}
		id := cur.ProductID
		changes = append(changes, PriceChange{
			CompetitorProductID: &id,
			Competitor:          key.Competitor,
			ProductName:         key.ProductName,
			CityName:            key.CityName,
			OldPrice:            prev.PriceUSD,
			NewPrice:            cur.PriceUSD,
			ChangePercent:       pct,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.Competitor != b.Competitor {
			return a.Competitor < b.Competitor
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.CityName < b.CityName
	})
	return changes
}

// ==================== 服务 ====================

// DetectorService 快照与历史落库
type DetectorService struct {
	compRepo    repository.CompetitorProductRepository
	historyRepo repository.PriceHistoryRepository
	rules       *config.RuleStore
	log         *logger.Logger
	now         func() time.Time
}

func NewDetectorService(
	compRepo repository.CompetitorProductRepository,
	historyRepo repository.PriceHistoryRepository,
	rules *config.RuleStore,
	log *logger.Logger,
) *DetectorService {
	if log == nil {
		log = logger.Nop()
	}
	return &DetectorService{
		compRepo:    compRepo,
		historyRepo: historyRepo,
		rules:       rules,
		log:         log,
		now:         time.Now,
	}
}

// CaptureSnapshot 读取当前全部竞品价格，必须在采集之前调用
func (s *DetectorService) CaptureSnapshot(ctx context.Context) (Snapshot, error) {
	products, err := s.compRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取竞品价格快照失败: %w", err)
	}
	snap, collisions := BuildSnapshot(products)
	if len(collisions) > 0 {
		s.log.Warn("[Detector] 快照键重复，同名城市下的同名产品只比较最后一条",
			"duplicates", len(collisions), "first", collisions[0])
	}
	return snap, nil
}

// Record 与采集前快照对比，显著变动在一个事务内写入历史表
func (s *DetectorService) Record(ctx context.Context, previous Snapshot) ([]PriceChange, error) {
	current, err := s.CaptureSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	threshold := s.rules.Current().ChangeThreshold
	changes := DetectChanges(previous, current, threshold)
	if len(changes) == 0 {
		s.log.Info("[Detector] 未发现显著价格变动", "threshold", threshold)
		return nil, nil
	}

	recordedAt := s.now()
	records := make([]model.PriceHistory, 0, len(changes))
	for _, c := range changes {
		records = append(records, model.PriceHistory{
			CompetitorProductID: c.CompetitorProductID,
			Competitor:          c.Competitor,
			ProductName:         c.ProductName,
			CityName:            c.CityName,
			OldPrice:            c.OldPrice,
			NewPrice:            c.NewPrice,
			ChangePercent:       c.ChangePercent,
			RecordedAt:          recordedAt,
		})
	}

	err = s.historyRepo.Transaction(ctx, func(txRepo repository.PriceHistoryRepository) error {
		return txRepo.BatchCreate(ctx, records)
	})
	if err != nil {
		return nil, fmt.Errorf("写入价格历史失败: %w", err)
	}

	s.log.Info("[Detector] 价格变动已记录", "changes", len(changes), "threshold", threshold)
	return changes, nil
}
