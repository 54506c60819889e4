package repository

import (
	"context"

	"gorm.io/gorm"

	"metal_price_tracker/internal/model"
)

// PriceHistoryRepository 价格变动历史仓储接口(只追加)
type PriceHistoryRepository interface {
	BatchCreate(ctx context.Context, records []model.PriceHistory) error
	List(ctx context.Context, filter PriceHistoryFilter) ([]model.PriceHistory, error)

	WithTx(tx *gorm.DB) PriceHistoryRepository
	Transaction(ctx context.Context, fn func(txRepo PriceHistoryRepository) error) error
}

// PriceHistoryFilter 历史查询条件，Limit 默认 100
type PriceHistoryFilter struct {
	Competitor model.Competitor
	Limit      int
}

type priceHistoryRepo struct {
	db *gorm.DB
}

// NewPriceHistoryRepository 创建价格历史仓储
func NewPriceHistoryRepository(db *gorm.DB) PriceHistoryRepository {
	return &priceHistoryRepo{db: db}
}

func (r *priceHistoryRepo) BatchCreate(ctx context.Context, records []model.PriceHistory) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&records, 200).Error
}

func (r *priceHistoryRepo) List(ctx context.Context, filter PriceHistoryFilter) ([]model.PriceHistory, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	var records []model.PriceHistory
	query := r.db.WithContext(ctx).Model(&model.PriceHistory{})
	if filter.Competitor != "" {
		query = query.Where("competitor = ?", filter.Competitor)
	}
	err := query.
		Order("recorded_at DESC, id DESC").
		Limit(filter.Limit).
		Find(&records).Error
	return records, err
}

func (r *priceHistoryRepo) WithTx(tx *gorm.DB) PriceHistoryRepository {
	return &priceHistoryRepo{db: tx}
}

func (r *priceHistoryRepo) Transaction(ctx context.Context, fn func(txRepo PriceHistoryRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
