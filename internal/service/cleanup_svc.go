package service

import (
	"context"
	"fmt"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/location"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// CleanupResult 清理统计
type CleanupResult struct {
	ProductsDeleted int64 `json:"products_deleted"`
	CitiesDeleted   int64 `json:"cities_deleted"`
}

// CleanupService 删除本地区域以外的竞品及无人引用的城市
type CleanupService struct {
	compRepo repository.CompetitorProductRepository
	cityRepo repository.CityRepository
	rules    *config.RuleStore
	log      *logger.Logger
}

func NewCleanupService(
	compRepo repository.CompetitorProductRepository,
	cityRepo repository.CityRepository,
	rules *config.RuleStore,
	log *logger.Logger,
) *CleanupService {
	if log == nil {
		log = logger.Nop()
	}
	return &CleanupService{compRepo: compRepo, cityRepo: cityRepo, rules: rules, log: log}
}

// Run 先删竞品(连同比价)，再删空城市
func (s *CleanupService) Run(ctx context.Context) (*CleanupResult, error) {
	home := location.NewHomeRegions(s.rules.Current().HomeRegions)

	products, err := s.compRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取竞品失败: %w", err)
	}

	var ids []int64
	for _, p := range products {
		if !home.IsHomeCity(p.City) {
			ids = append(ids, p.ID)
		}
	}

	result := &CleanupResult{}
	result.ProductsDeleted, err = s.compRepo.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("删除非本地区域竞品失败: %w", err)
	}
	result.CitiesDeleted, err = s.cityRepo.DeleteUnreferenced(ctx)
	if err != nil {
		return nil, fmt.Errorf("删除空城市失败: %w", err)
	}

	s.log.Info("[Cleanup] 清理完成",
		"products_deleted", result.ProductsDeleted, "cities_deleted", result.CitiesDeleted)
	return result, nil
}
