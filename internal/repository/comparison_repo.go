package repository

import (
	"context"

	"gorm.io/gorm"

	"metal_price_tracker/internal/model"
)

// ==================== 接口定义 ====================

// ComparisonRepository 比价记录仓储接口
type ComparisonRepository interface {
	Create(ctx context.Context, comparison *model.Comparison) error
	GetByID(ctx context.Context, id int64) (*model.Comparison, error)
	Delete(ctx context.Context, id int64) error
	// List 关联基准/竞品/城市，按价差降序
	List(ctx context.Context, filter ComparisonFilter) ([]model.Comparison, error)
	Count(ctx context.Context) (int64, error)

	// ReplaceAll 删除全部比价后写入新集合，同一事务
	ReplaceAll(ctx context.Context, comparisons []model.Comparison) error

	// 统计
	Stats(ctx context.Context) (*ComparisonStats, error)
	StatsByCompetitor(ctx context.Context) ([]CompetitorStats, error)

	// 事务
	WithTx(tx *gorm.DB) ComparisonRepository
	Transaction(ctx context.Context, fn func(txRepo ComparisonRepository) error) error
}

// ==================== 过滤条件 ====================

// ComparisonFilter 比价过滤条件
type ComparisonFilter struct {
	Competitor  model.Competitor
	CityID      int64
	ReferenceID int64
	Position    model.PricePosition
}

// ComparisonStats 整体分档统计
type ComparisonStats struct {
	Total       int64
	Cheaper     int64
	Competitive int64
	Expensive   int64
	AvgDiff     float64
}

// CompetitorStats 单个供应商分档统计
type CompetitorStats struct {
	Competitor  model.Competitor
	Count       int64
	AvgDiff     float64
	Cheaper     int64
	Competitive int64
	Expensive   int64
}

// ==================== 仓储实现 ====================

type comparisonRepo struct {
	db *gorm.DB
}

// NewComparisonRepository 创建比价仓储
func NewComparisonRepository(db *gorm.DB) ComparisonRepository {
	return &comparisonRepo{db: db}
}

// 分档 SQL，边界 ±10 计入持平区间
const positionBucketsSQL = `COUNT(*) AS count,
	COALESCE(AVG(comparisons.price_difference_percent), 0) AS avg_diff,
	COALESCE(SUM(CASE WHEN comparisons.price_difference_percent > ? THEN 1 ELSE 0 END), 0) AS cheaper,
	COALESCE(SUM(CASE WHEN comparisons.price_difference_percent < ? THEN 1 ELSE 0 END), 0) AS expensive`

func (r *comparisonRepo) Create(ctx context.Context, comparison *model.Comparison) error {
	return r.db.WithContext(ctx).
		Omit("ReferenceProduct", "CompetitorProduct").
		Create(comparison).Error
}

func (r *comparisonRepo) GetByID(ctx context.Context, id int64) (*model.Comparison, error) {
	var comparison model.Comparison
	err := r.db.WithContext(ctx).
		Preload("ReferenceProduct").
		Preload("CompetitorProduct.City").
		First(&comparison, id).Error
	if err != nil {
		return nil, err
	}
	return &comparison, nil
}

func (r *comparisonRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Comparison{}, id).Error
}

func (r *comparisonRepo) List(ctx context.Context, filter ComparisonFilter) ([]model.Comparison, error) {
	var comparisons []model.Comparison

	query := r.db.WithContext(ctx).
		Model(&model.Comparison{}).
		Joins("JOIN competitor_products ON competitor_products.id = comparisons.competitor_product_id")

	if filter.Competitor != "" {
		query = query.Where("competitor_products.competitor = ?", filter.Competitor)
	}
	if filter.CityID > 0 {
		query = query.Where("competitor_products.city_id = ?", filter.CityID)
	}
	if filter.ReferenceID > 0 {
		query = query.Where("comparisons.reference_product_id = ?", filter.ReferenceID)
	}
	switch filter.Position {
	case model.PositionCheaper:
		query = query.Where("comparisons.price_difference_percent > ?", model.PositionThreshold)
	case model.PositionExpensive:
		query = query.Where("comparisons.price_difference_percent < ?", -model.PositionThreshold)
	case model.PositionCompetitive:
		query = query.Where("comparisons.price_difference_percent BETWEEN ? AND ?",
			-model.PositionThreshold, model.PositionThreshold)
	}

	err := query.
		Preload("ReferenceProduct").
		Preload("CompetitorProduct.City").
		Order("comparisons.price_difference_percent DESC, comparisons.id ASC").
		Find(&comparisons).Error
	return comparisons, err
}

func (r *comparisonRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Comparison{}).Count(&total).Error
	return total, err
}

func (r *comparisonRepo) ReplaceAll(ctx context.Context, comparisons []model.Comparison) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.Comparison{}).Error; err != nil {
			return err
		}
		if len(comparisons) == 0 {
			return nil
		}
		for i := range comparisons {
			comparisons[i].ID = 0
		}
		return tx.Omit("ReferenceProduct", "CompetitorProduct").
			CreateInBatches(&comparisons, 200).Error
	})
}

func (r *comparisonRepo) Stats(ctx context.Context) (*ComparisonStats, error) {
	var row struct {
		Count     int64
		AvgDiff   float64
		Cheaper   int64
		Expensive int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Comparison{}).
		Select(positionBucketsSQL, model.PositionThreshold, -model.PositionThreshold).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &ComparisonStats{
		Total:       row.Count,
		Cheaper:     row.Cheaper,
		Expensive:   row.Expensive,
		Competitive: row.Count - row.Cheaper - row.Expensive,
		AvgDiff:     row.AvgDiff,
	}, nil
}

func (r *comparisonRepo) StatsByCompetitor(ctx context.Context) ([]CompetitorStats, error) {
	type result struct {
		Competitor model.Competitor
		Count      int64
		AvgDiff    float64
		Cheaper    int64
		Expensive  int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&model.Comparison{}).
		Joins("JOIN competitor_products ON competitor_products.id = comparisons.competitor_product_id").
		Select("competitor_products.competitor AS competitor, "+positionBucketsSQL,
			model.PositionThreshold, -model.PositionThreshold).
		Group("competitor_products.competitor").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	stats := make([]CompetitorStats, 0, len(results))
	for _, r := range results {
		stats = append(stats, CompetitorStats{
			Competitor:  r.Competitor,
			Count:       r.Count,
			AvgDiff:     r.AvgDiff,
			Cheaper:     r.Cheaper,
			Competitive: r.Count - r.Cheaper - r.Expensive,
			Expensive:   r.Expensive,
		})
	}
	return stats, nil
}

func (r *comparisonRepo) WithTx(tx *gorm.DB) ComparisonRepository {
	return &comparisonRepo{db: tx}
}

func (r *comparisonRepo) Transaction(ctx context.Context, fn func(txRepo ComparisonRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
