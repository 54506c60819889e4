package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"metal_price_tracker/internal/model"
)

// ==================== 接口定义 ====================

// CompetitorProductRepository 竞品 SKU 仓储接口
type CompetitorProductRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, product *model.CompetitorProduct) error
	GetByID(ctx context.Context, id int64) (*model.CompetitorProduct, error)
	Update(ctx context.Context, product *model.CompetitorProduct) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// Delete 同时删除引用它的比价记录
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter CompetitorFilter) ([]model.CompetitorProduct, int64, error)
	// ListAll 全量读取(含城市)，供比价与快照使用
	ListAll(ctx context.Context) ([]model.CompetitorProduct, error)
	Count(ctx context.Context) (int64, error)

	// 批量操作
	// ReplaceForCompetitor 整表替换某供应商的全部 SKU，同一事务
	ReplaceForCompetitor(ctx context.Context, competitor model.Competitor, products []model.CompetitorProduct) error
	// BatchUpsert 按 (competitor, name, city_id) 更新或插入
	BatchUpsert(ctx context.Context, products []model.CompetitorProduct) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)

	// 统计
	CountInStockByCompetitor(ctx context.Context) (map[model.Competitor]int64, error)

	// 事务
	WithTx(tx *gorm.DB) CompetitorProductRepository
	Transaction(ctx context.Context, fn func(txRepo CompetitorProductRepository) error) error
}

// ==================== 过滤条件 ====================

// CompetitorFilter 竞品过滤条件
type CompetitorFilter struct {
	Competitor model.Competitor
	CityID     int64
	InStock    *bool
	Keyword    string
	Page       int
	PageSize   int
}

// ==================== 仓储实现 ====================

type competitorProductRepo struct {
	db *gorm.DB
}

// NewCompetitorProductRepository 创建竞品仓储
func NewCompetitorProductRepository(db *gorm.DB) CompetitorProductRepository {
	return &competitorProductRepo{db: db}
}

var competitorUpsertColumns = []string{
	"cpu", "cpu_cores", "ram_gb",
	"storage_description", "storage_total_tb", "network_gbps",
	"price_usd", "source_url", "inventory_url",
	"in_stock", "quantity", "last_verified", "last_inventory_check",
	"updated_at",
}

func (r *competitorProductRepo) Create(ctx context.Context, product *model.CompetitorProduct) error {
	return r.db.WithContext(ctx).Omit("City").Create(product).Error
}

func (r *competitorProductRepo) GetByID(ctx context.Context, id int64) (*model.CompetitorProduct, error) {
	var product model.CompetitorProduct
	err := r.db.WithContext(ctx).
		Preload("City").
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *competitorProductRepo) Update(ctx context.Context, product *model.CompetitorProduct) error {
	return r.db.WithContext(ctx).Omit("City").Save(product).Error
}

func (r *competitorProductRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.CompetitorProduct{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *competitorProductRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.DeleteByIDs(ctx, []int64{id})
	return err
}

func (r *competitorProductRepo) List(ctx context.Context, filter CompetitorFilter) ([]model.CompetitorProduct, int64, error) {
	var products []model.CompetitorProduct
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CompetitorProduct{})

	if filter.Competitor != "" {
		query = query.Where("competitor = ?", filter.Competitor)
	}
	if filter.CityID > 0 {
		query = query.Where("city_id = ?", filter.CityID)
	}
	if filter.InStock != nil {
		query = query.Where("in_stock = ?", *filter.InStock)
	}
	if filter.Keyword != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.
		Preload("City").
		Order("competitor ASC, price_usd ASC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&products).Error

	return products, total, err
}

func (r *competitorProductRepo) ListAll(ctx context.Context) ([]model.CompetitorProduct, error) {
	var products []model.CompetitorProduct
	err := r.db.WithContext(ctx).
		Preload("City").
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *competitorProductRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.CompetitorProduct{}).Count(&total).Error
	return total, err
}

func (r *competitorProductRepo) ReplaceForCompetitor(ctx context.Context, competitor model.Competitor, products []model.CompetitorProduct) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&model.CompetitorProduct{}).Select("id").Where("competitor = ?", competitor)

		if err := tx.Where("competitor_product_id IN (?)", ids).Delete(&model.Comparison{}).Error; err != nil {
			return err
		}
		// 历史记录只追加，解除外键引用即可
		if err := tx.Model(&model.PriceHistory{}).
			Where("competitor_product_id IN (?)", ids).
			Update("competitor_product_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("competitor = ?", competitor).Delete(&model.CompetitorProduct{}).Error; err != nil {
			return err
		}

		if len(products) == 0 {
			return nil
		}
		for i := range products {
			products[i].ID = 0
			products[i].Competitor = competitor
		}
		return tx.Omit("City").CreateInBatches(&products, 200).Error
	})
}

func (r *competitorProductRepo) BatchUpsert(ctx context.Context, products []model.CompetitorProduct) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("City").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "competitor"}, {Name: "name"}, {Name: "city_id"}},
		DoUpdates: clause.AssignmentColumns(competitorUpsertColumns),
	}).Create(&products).Error
}

func (r *competitorProductRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("competitor_product_id IN ?", ids).Delete(&model.Comparison{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.PriceHistory{}).
			Where("competitor_product_id IN ?", ids).
			Update("competitor_product_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&model.CompetitorProduct{})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

func (r *competitorProductRepo) CountInStockByCompetitor(ctx context.Context) (map[model.Competitor]int64, error) {
	type result struct {
		Competitor model.Competitor
		Count      int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&model.CompetitorProduct{}).
		Select("competitor, COUNT(*) as count").
		Where("in_stock = ?", true).
		Group("competitor").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[model.Competitor]int64)
	for _, r := range results {
		stats[r.Competitor] = r.Count
	}
	return stats, nil
}

func (r *competitorProductRepo) WithTx(tx *gorm.DB) CompetitorProductRepository {
	return &competitorProductRepo{db: tx}
}

func (r *competitorProductRepo) Transaction(ctx context.Context, fn func(txRepo CompetitorProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
