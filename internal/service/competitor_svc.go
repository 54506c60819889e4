package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// ==================== 竞品管理 ====================

// CompetitorInput 手工新建/修改竞品，修改时 nil 字段保持不变
type CompetitorInput struct {
	Competitor         *model.Competitor
	Name               *string
	CPU                *string
	CPUCores           *int
	RAMGB              *int
	StorageDescription *string
	StorageTotalTB     *float64
	NetworkGbps        *int
	PriceUSD           *float64
	CityID             *int64
	SourceURL          *string
	InventoryURL       *string
	InStock            *bool
	Quantity           *int
}

type CompetitorService struct {
	compRepo repository.CompetitorProductRepository
	cityRepo repository.CityRepository
	matcher  Regenerator
	log      *logger.Logger
	now      func() time.Time
}

func NewCompetitorService(
	compRepo repository.CompetitorProductRepository,
	cityRepo repository.CityRepository,
	matcher Regenerator,
	log *logger.Logger,
) *CompetitorService {
	if log == nil {
		log = logger.Nop()
	}
	return &CompetitorService{
		compRepo: compRepo,
		cityRepo: cityRepo,
		matcher:  matcher,
		log:      log,
		now:      time.Now,
	}
}

func (s *CompetitorService) List(ctx context.Context, filter repository.CompetitorFilter) ([]model.CompetitorProduct, int64, error) {
	products, total, err := s.compRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("查询竞品列表失败: %w", err)
	}
	return products, total, nil
}

func (s *CompetitorService) Get(ctx context.Context, id int64) (*model.CompetitorProduct, error) {
	product, err := s.compRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询竞品失败: %w", err)
	}
	return product, nil
}

// Create 供应商、名称、城市、价格必填
func (s *CompetitorService) Create(ctx context.Context, in CompetitorInput) (*model.CompetitorProduct, error) {
	if in.Competitor == nil || !in.Competitor.Valid() {
		return nil, fmt.Errorf("未知供应商: %w", ErrInvalidInput)
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("名称不能为空: %w", ErrInvalidInput)
	}
	if in.CityID == nil {
		return nil, fmt.Errorf("城市不能为空: %w", ErrInvalidInput)
	}
	if in.PriceUSD == nil || *in.PriceUSD <= 0 {
		return nil, fmt.Errorf("价格必须大于 0: %w", ErrInvalidInput)
	}
	if err := s.checkCity(ctx, *in.CityID); err != nil {
		return nil, err
	}

	now := s.now()
	product := &model.CompetitorProduct{InStock: true, LastVerified: &now}
	applyCompetitorInput(product, in)
	if err := s.compRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("创建竞品失败: %w", err)
	}
	if err := s.regenerate(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, product.ID)
}

// Update 核数/内存/价格/城市/库存变化时重新匹配
func (s *CompetitorService) Update(ctx context.Context, id int64, in CompetitorInput) (*model.CompetitorProduct, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Competitor != nil && !in.Competitor.Valid() {
		return nil, fmt.Errorf("未知供应商: %w", ErrInvalidInput)
	}
	if in.PriceUSD != nil && *in.PriceUSD <= 0 {
		return nil, fmt.Errorf("价格必须大于 0: %w", ErrInvalidInput)
	}
	if in.CityID != nil && *in.CityID != product.CityID {
		if err := s.checkCity(ctx, *in.CityID); err != nil {
			return nil, err
		}
	}
	before := *product

	applyCompetitorInput(product, in)
	product.City = nil
	if err := s.compRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("更新竞品失败: %w", err)
	}

	if before.CPUCores != product.CPUCores || before.RAMGB != product.RAMGB ||
		before.PriceUSD != product.PriceUSD || before.CityID != product.CityID ||
		before.CPU != product.CPU || before.InStock != product.InStock {
		if err := s.regenerate(ctx); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// UpdateInventory 更新库存并记录检查时间
func (s *CompetitorService) UpdateInventory(ctx context.Context, id int64, inStock bool) (*model.CompetitorProduct, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.compRepo.UpdateFields(ctx, id, map[string]interface{}{
		"in_stock":             inStock,
		"last_inventory_check": s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("更新库存失败: %w", err)
	}
	if product.InStock != inStock {
		if err := s.regenerate(ctx); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete 同时删除引用它的比价
func (s *CompetitorService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.compRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除竞品失败: %w", err)
	}
	return s.regenerate(ctx)
}

func (s *CompetitorService) checkCity(ctx context.Context, cityID int64) error {
	if _, err := s.cityRepo.GetByID(ctx, cityID); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("城市 %d 不存在: %w", cityID, ErrInvalidInput)
		}
		return fmt.Errorf("查询城市失败: %w", err)
	}
	return nil
}

func (s *CompetitorService) regenerate(ctx context.Context) error {
	if s.matcher == nil {
		return nil
	}
	if _, err := s.matcher.Regenerate(ctx); err != nil {
		return fmt.Errorf("重新生成比价失败: %w", err)
	}
	return nil
}

func applyCompetitorInput(p *model.CompetitorProduct, in CompetitorInput) {
	if in.Competitor != nil {
		p.Competitor = *in.Competitor
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.CPU != nil {
		p.CPU = *in.CPU
	}
	if in.CPUCores != nil {
		p.CPUCores = *in.CPUCores
	}
	if in.RAMGB != nil {
		p.RAMGB = *in.RAMGB
	}
	if in.StorageDescription != nil {
		p.StorageDescription = *in.StorageDescription
	}
	if in.StorageTotalTB != nil {
		p.StorageTotalTB = *in.StorageTotalTB
	}
	if in.NetworkGbps != nil {
		p.NetworkGbps = *in.NetworkGbps
	}
	if in.PriceUSD != nil {
		p.PriceUSD = *in.PriceUSD
	}
	if in.CityID != nil {
		p.CityID = *in.CityID
	}
	if in.SourceURL != nil {
		p.SourceURL = *in.SourceURL
	}
	if in.InventoryURL != nil {
		p.InventoryURL = in.InventoryURL
	}
	if in.InStock != nil {
		p.InStock = *in.InStock
	}
	if in.Quantity != nil {
		p.Quantity = in.Quantity
	}
}
