package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"metal_price_tracker/internal/model"
)

// ==================== 接口定义 ====================

// CityRepository 城市仓储接口
type CityRepository interface {
	GetByID(ctx context.Context, id int64) (*model.City, error)
	FindByCode(ctx context.Context, code string) (*model.City, error)
	// FindOrCreate 按 code 查找，不存在则插入；并发插入冲突时忽略并重新读取
	FindOrCreate(ctx context.Context, city *model.City) (*model.City, error)
	List(ctx context.Context) ([]model.City, error)

	// 清理
	DeleteUnreferenced(ctx context.Context) (int64, error)

	// 事务
	WithTx(tx *gorm.DB) CityRepository
	Transaction(ctx context.Context, fn func(txRepo CityRepository) error) error
}

// ==================== 仓储实现 ====================

type cityRepo struct {
	db *gorm.DB
}

// NewCityRepository 创建城市仓储
func NewCityRepository(db *gorm.DB) CityRepository {
	return &cityRepo{db: db}
}

func (r *cityRepo) GetByID(ctx context.Context, id int64) (*model.City, error) {
	var city model.City
	if err := r.db.WithContext(ctx).First(&city, id).Error; err != nil {
		return nil, err
	}
	return &city, nil
}

func (r *cityRepo) FindByCode(ctx context.Context, code string) (*model.City, error) {
	var city model.City
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&city).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &city, nil
}

func (r *cityRepo) FindOrCreate(ctx context.Context, city *model.City) (*model.City, error) {
	existing, err := r.FindByCode(ctx, city.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(city).Error
	if err != nil {
		return nil, err
	}

	return r.FindByCode(ctx, city.Code)
}

func (r *cityRepo) List(ctx context.Context) ([]model.City, error) {
	var cities []model.City
	err := r.db.WithContext(ctx).
		Order("country ASC, name ASC").
		Find(&cities).Error
	return cities, err
}

func (r *cityRepo) DeleteUnreferenced(ctx context.Context) (int64, error) {
	used := r.db.Model(&model.CompetitorProduct{}).Select("city_id")
	result := r.db.WithContext(ctx).
		Where("id NOT IN (?)", used).
		Delete(&model.City{})
	return result.RowsAffected, result.Error
}

func (r *cityRepo) WithTx(tx *gorm.DB) CityRepository {
	return &cityRepo{db: tx}
}

func (r *cityRepo) Transaction(ctx context.Context, fn func(txRepo CityRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
