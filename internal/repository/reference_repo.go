package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"metal_price_tracker/internal/model"
)

// ==================== 接口定义 ====================

// ReferenceProductRepository 基准 SKU 仓储接口
type ReferenceProductRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, product *model.ReferenceProduct) error
	GetByID(ctx context.Context, id int64) (*model.ReferenceProduct, error)
	FindByName(ctx context.Context, name string) (*model.ReferenceProduct, error)
	Update(ctx context.Context, product *model.ReferenceProduct) error
	// Delete 级联删除区域价格与比价记录
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.ReferenceProduct, error)
	Count(ctx context.Context) (int64, error)

	// 区域价格
	ReplaceRegionalPrices(ctx context.Context, productID int64, prices []model.RegionalPrice) error
	GetRegionalPrice(ctx context.Context, productID int64, region string) (*model.RegionalPrice, error)

	// 事务
	WithTx(tx *gorm.DB) ReferenceProductRepository
	Transaction(ctx context.Context, fn func(txRepo ReferenceProductRepository) error) error
}

// ==================== 仓储实现 ====================

type referenceProductRepo struct {
	db *gorm.DB
}

// NewReferenceProductRepository 创建基准 SKU 仓储
func NewReferenceProductRepository(db *gorm.DB) ReferenceProductRepository {
	return &referenceProductRepo{db: db}
}

func (r *referenceProductRepo) Create(ctx context.Context, product *model.ReferenceProduct) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *referenceProductRepo) GetByID(ctx context.Context, id int64) (*model.ReferenceProduct, error) {
	var product model.ReferenceProduct
	err := r.db.WithContext(ctx).
		Preload("RegionalPrices").
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *referenceProductRepo) FindByName(ctx context.Context, name string) (*model.ReferenceProduct, error) {
	var product model.ReferenceProduct
	err := r.db.WithContext(ctx).
		Preload("RegionalPrices").
		Where("name = ?", name).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *referenceProductRepo) Update(ctx context.Context, product *model.ReferenceProduct) error {
	return r.db.WithContext(ctx).Omit("RegionalPrices").Save(product).Error
}

func (r *referenceProductRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_product_id = ?", id).Delete(&model.Comparison{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reference_product_id = ?", id).Delete(&model.RegionalPrice{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ReferenceProduct{}, id).Error
	})
}

func (r *referenceProductRepo) List(ctx context.Context) ([]model.ReferenceProduct, error) {
	var products []model.ReferenceProduct
	err := r.db.WithContext(ctx).
		Preload("RegionalPrices").
		Order("name ASC").
		Find(&products).Error
	return products, err
}

func (r *referenceProductRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.ReferenceProduct{}).Count(&total).Error
	return total, err
}

// ReplaceRegionalPrices 删除该 SKU 全部区域价格后重新写入，同一事务
func (r *referenceProductRepo) ReplaceRegionalPrices(ctx context.Context, productID int64, prices []model.RegionalPrice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_product_id = ?", productID).Delete(&model.RegionalPrice{}).Error; err != nil {
			return err
		}
		if len(prices) == 0 {
			return nil
		}
		for i := range prices {
			prices[i].ID = 0
			prices[i].ReferenceProductID = productID
		}
		return tx.Create(&prices).Error
	})
}

func (r *referenceProductRepo) GetRegionalPrice(ctx context.Context, productID int64, region string) (*model.RegionalPrice, error) {
	var price model.RegionalPrice
	err := r.db.WithContext(ctx).
		Where("reference_product_id = ? AND region = ?", productID, region).
		First(&price).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}

func (r *referenceProductRepo) WithTx(tx *gorm.DB) ReferenceProductRepository {
	return &referenceProductRepo{db: tx}
}

func (r *referenceProductRepo) Transaction(ctx context.Context, fn func(txRepo ReferenceProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
