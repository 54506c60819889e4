package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// ==================== 看板视图 ====================

// ComparisonView 比价记录 + 价格位置 + 规格相似度
type ComparisonView struct {
	model.Comparison
	Position      model.PricePosition `json:"position"`
	PositionLabel string              `json:"position_label"`
	Similarity    int                 `json:"similarity"`
}

// CompetitorSummary 单个供应商统计，没有比价的供应商也会出现
type CompetitorSummary struct {
	Competitor  model.Competitor `json:"competitor"`
	Comparisons int64            `json:"comparisons"`
	AvgDiff     float64          `json:"avg_diff"`
	Cheaper     int64            `json:"cheaper"`
	Competitive int64            `json:"competitive"`
	Expensive   int64            `json:"expensive"`
	InStock     int64            `json:"in_stock"`
}

// DashboardStats 总览
type DashboardStats struct {
	ReferenceProducts  int64               `json:"reference_products"`
	CompetitorProducts int64               `json:"competitor_products"`
	Comparisons        int64               `json:"comparisons"`
	Cheaper            int64               `json:"cheaper"`
	Competitive        int64               `json:"competitive"`
	Expensive          int64               `json:"expensive"`
	AvgDiff            float64             `json:"avg_diff"`
	ByCompetitor       []CompetitorSummary `json:"by_competitor"`
	LastRun            *model.PipelineRun  `json:"last_run,omitempty"`
}

type DashboardService struct {
	refRepo        repository.ReferenceProductRepository
	compRepo       repository.CompetitorProductRepository
	comparisonRepo repository.ComparisonRepository
	historyRepo    repository.PriceHistoryRepository
	cityRepo       repository.CityRepository
	runRepo        repository.PipelineRunRepository
	rules          *config.RuleStore
	log            *logger.Logger
}

// DashboardDeps 看板依赖
type DashboardDeps struct {
	RefRepo        repository.ReferenceProductRepository
	CompRepo       repository.CompetitorProductRepository
	ComparisonRepo repository.ComparisonRepository
	HistoryRepo    repository.PriceHistoryRepository
	CityRepo       repository.CityRepository
	RunRepo        repository.PipelineRunRepository
	Rules          *config.RuleStore
	Log            *logger.Logger
}

func NewDashboardService(deps DashboardDeps) *DashboardService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &DashboardService{
		refRepo:        deps.RefRepo,
		compRepo:       deps.CompRepo,
		comparisonRepo: deps.ComparisonRepo,
		historyRepo:    deps.HistoryRepo,
		cityRepo:       deps.CityRepo,
		runRepo:        deps.RunRepo,
		rules:          deps.Rules,
		log:            log,
	}
}

// ==================== 统计 ====================

func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	var err error

	if stats.ReferenceProducts, err = s.refRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("统计基准产品失败: %w", err)
	}
	if stats.CompetitorProducts, err = s.compRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("统计竞品失败: %w", err)
	}

	overall, err := s.comparisonRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计比价失败: %w", err)
	}
	stats.Comparisons = overall.Total
	stats.Cheaper = overall.Cheaper
	stats.Competitive = overall.Competitive
	stats.Expensive = overall.Expensive
	stats.AvgDiff = overall.AvgDiff

	byCompetitor, err := s.comparisonRepo.StatsByCompetitor(ctx)
	if err != nil {
		return nil, fmt.Errorf("按供应商统计失败: %w", err)
	}
	inStock, err := s.compRepo.CountInStockByCompetitor(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计库存失败: %w", err)
	}

	indexed := make(map[model.Competitor]repository.CompetitorStats, len(byCompetitor))
	for _, cs := range byCompetitor {
		indexed[cs.Competitor] = cs
	}
	for _, c := range model.AllCompetitors {
		cs := indexed[c]
		stats.ByCompetitor = append(stats.ByCompetitor, CompetitorSummary{
			Competitor:  c,
			Comparisons: cs.Count,
			AvgDiff:     cs.AvgDiff,
			Cheaper:     cs.Cheaper,
			Competitive: cs.Competitive,
			Expensive:   cs.Expensive,
			InStock:     inStock[c],
		})
	}

	if s.runRepo != nil {
		if stats.LastRun, err = s.runRepo.LastSucceeded(ctx); err != nil {
			return nil, fmt.Errorf("查询最近运行失败: %w", err)
		}
	}
	return stats, nil
}

// ==================== 比价 ====================

// ListComparisons 按价差降序
func (s *DashboardService) ListComparisons(ctx context.Context, filter repository.ComparisonFilter) ([]ComparisonView, error) {
	comparisons, err := s.comparisonRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("查询比价失败: %w", err)
	}
	views := make([]ComparisonView, 0, len(comparisons))
	for _, c := range comparisons {
		views = append(views, newComparisonView(c))
	}
	return views, nil
}

func newComparisonView(c model.Comparison) ComparisonView {
	pos := c.Position()
	return ComparisonView{
		Comparison:    c,
		Position:      pos,
		PositionLabel: pos.Label(),
		Similarity:    SpecSimilarity(c.ReferenceProduct, c.CompetitorProduct),
	}
}

// CreateComparison 手工配对，价差按竞品所在国家的区域价格计算
func (s *DashboardService) CreateComparison(ctx context.Context, referenceID, competitorID int64, notes string) (*ComparisonView, error) {
	ref, err := s.refRepo.GetByID(ctx, referenceID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("基准产品 %d 不存在: %w", referenceID, ErrInvalidInput)
		}
		return nil, fmt.Errorf("查询基准产品失败: %w", err)
	}
	comp, err := s.compRepo.GetByID(ctx, competitorID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("竞品 %d 不存在: %w", competitorID, ErrInvalidInput)
		}
		return nil, fmt.Errorf("查询竞品失败: %w", err)
	}

	country := ""
	if comp.City != nil {
		country = comp.City.Country
	}
	refPrice := NewPricingResolver(NewRegionTable(s.rules.Current()), []model.ReferenceProduct{*ref}).
		ResolvePrice(ref.ID, country)

	comparison := &model.Comparison{
		ReferenceProductID:     ref.ID,
		CompetitorProductID:    comp.ID,
		PriceDifferencePercent: PriceDifference(refPrice, comp.PriceUSD),
		Notes:                  notes,
	}
	if refPrice != ref.PriceUSD {
		comparison.RegionalReferencePriceUSD = &refPrice
	}
	if err := s.comparisonRepo.Create(ctx, comparison); err != nil {
		return nil, fmt.Errorf("创建比价失败: %w", err)
	}

	comparison.ReferenceProduct = ref
	comparison.CompetitorProduct = comp
	view := newComparisonView(*comparison)
	return &view, nil
}

func (s *DashboardService) DeleteComparison(ctx context.Context, id int64) error {
	if _, err := s.comparisonRepo.GetByID(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("查询比价失败: %w", err)
	}
	if err := s.comparisonRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除比价失败: %w", err)
	}
	return nil
}

// ==================== 历史 / 城市 ====================

func (s *DashboardService) PriceHistory(ctx context.Context, filter repository.PriceHistoryFilter) ([]model.PriceHistory, error) {
	records, err := s.historyRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("查询价格历史失败: %w", err)
	}
	return records, nil
}

func (s *DashboardService) Cities(ctx context.Context) ([]model.City, error) {
	cities, err := s.cityRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询城市失败: %w", err)
	}
	return cities, nil
}

func (s *DashboardService) Runs(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	runs, err := s.runRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return runs, nil
}

// ==================== 导出 ====================

const exportSheet = "Comparisons"

var exportHeadings = []string{
	"Reference SKU", "Reference Price (USD)", "Competitor", "Competitor SKU", "CPU", "Cores", "RAM (GB)",
	"Storage", "City", "Country", "Competitor Price (USD)", "Price Difference (%)", "Position", "Similarity",
	"In Stock",
}

// ExportComparisons 按当前过滤条件导出 XLSX
func (s *DashboardService) ExportComparisons(ctx context.Context, filter repository.ComparisonFilter, w io.Writer) error {
	views, err := s.ListComparisons(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	for i, h := range exportHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}

	for row, v := range views {
		values := exportRow(v)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(exportSheet, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("写出 XLSX 失败: %w", err)
	}
	return nil
}

func exportRow(v ComparisonView) []interface{} {
	var refName string
	var refPrice float64
	if v.ReferenceProduct != nil {
		refName = v.ReferenceProduct.Name
		refPrice = v.ReferenceProduct.PriceUSD
	}
	if v.RegionalReferencePriceUSD != nil {
		refPrice = *v.RegionalReferencePriceUSD
	}

	comp := v.CompetitorProduct
	if comp == nil {
		comp = &model.CompetitorProduct{}
	}
	var cityName, country string
	if comp.City != nil {
		cityName = comp.City.Name
		country = comp.City.Country
	}

	return []interface{}{
		refName, refPrice, string(comp.Competitor), comp.Name, comp.CPU, comp.CPUCores, comp.RAMGB,
		comp.StorageDescription, cityName, country, comp.PriceUSD, v.PriceDifferencePercent,
		v.PositionLabel, v.Similarity, comp.InStock,
	}
}
