package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// ==================== 基准产品服务 ====================

// PlanSource 基准厂商目录来源
type PlanSource interface {
	FetchPlans(ctx context.Context) ([]provider.ReferencePlan, error)
}

// Regenerator 规格或价格变化后重新生成比价
type Regenerator interface {
	Regenerate(ctx context.Context) (int, error)
}

// ReferenceInput 新建/修改基准产品，修改时 nil 字段保持不变
type ReferenceInput struct {
	Name               *string
	CPU                *string
	CPUCores           *int
	RAMGB              *int
	StorageDescription *string
	StorageTotalTB     *float64
	NetworkGbps        *int
	PriceUSD           *float64
	Generation         *int
}

// ReferenceImportResult 导入统计
type ReferenceImportResult struct {
	Plans          int      `json:"plans"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	RegionalPrices int      `json:"regional_prices"`
	UnknownRegions []string `json:"unknown_regions,omitempty"`
}

type ReferenceService struct {
	refRepo repository.ReferenceProductRepository
	matcher Regenerator
	log     *logger.Logger
}

func NewReferenceService(refRepo repository.ReferenceProductRepository, matcher Regenerator, log *logger.Logger) *ReferenceService {
	if log == nil {
		log = logger.Nop()
	}
	return &ReferenceService{refRepo: refRepo, matcher: matcher, log: log}
}

// ==================== 目录导入 ====================

// Import 拉取基准目录：不存在且美国价格大于 0 时新建，已存在时更新价格，区域价格整体替换
func (s *ReferenceService) Import(ctx context.Context, source PlanSource) (*ReferenceImportResult, error) {
	plans, err := source.FetchPlans(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReferenceImportResult{Plans: len(plans)}
	unknown := make(map[string]bool)

	for _, plan := range plans {
		for _, r := range plan.UnknownRegions {
			unknown[r] = true
		}

		err := s.refRepo.Transaction(ctx, func(txRepo repository.ReferenceProductRepository) error {
			existing, err := txRepo.FindByName(ctx, plan.Name)
			if err != nil {
				return err
			}

			var productID int64
			switch {
			case existing == nil && plan.DefaultPriceUSD > 0:
				product := &model.ReferenceProduct{
					Name:               plan.Name,
					CPU:                plan.CPU,
					CPUCores:           plan.CPUCores,
					RAMGB:              plan.RAMGB,
					StorageDescription: plan.Storage.Description,
					StorageTotalTB:     plan.Storage.TotalTB,
					NetworkGbps:        plan.NetworkGbps,
					PriceUSD:           plan.DefaultPriceUSD,
					Generation:         GenerationOf(plan.Name),
				}
				if err := txRepo.Create(ctx, product); err != nil {
					return err
				}
				productID = product.ID
				result.Created++
			case existing == nil:
				s.log.Warn("[Reference] 套餐缺少美国价格，跳过", "plan", plan.Name)
				result.Skipped++
				return nil
			default:
				productID = existing.ID
				if plan.DefaultPriceUSD > 0 && plan.DefaultPriceUSD != existing.PriceUSD {
					existing.PriceUSD = plan.DefaultPriceUSD
					existing.RegionalPrices = nil
					if err := txRepo.Update(ctx, existing); err != nil {
						return err
					}
				}
				result.Updated++
			}

			prices := make([]model.RegionalPrice, 0, len(plan.RegionalPrices))
			for region, price := range plan.RegionalPrices {
				prices = append(prices, model.RegionalPrice{Region: region, PriceUSD: price})
			}
			sort.Slice(prices, func(i, j int) bool { return prices[i].Region < prices[j].Region })
			result.RegionalPrices += len(prices)
			return txRepo.ReplaceRegionalPrices(ctx, productID, prices)
		})
		if err != nil {
			return nil, fmt.Errorf("导入基准套餐 %s 失败: %w", plan.Name, err)
		}
	}

	for r := range unknown {
		result.UnknownRegions = append(result.UnknownRegions, r)
	}
	sort.Strings(result.UnknownRegions)
	if len(result.UnknownRegions) > 0 {
		s.log.Warn("[Reference] 存在未映射的地区", "regions", strings.Join(result.UnknownRegions, ","))
	}

	s.log.Info("[Reference] 基准目录导入完成",
		"plans", result.Plans, "created", result.Created, "updated", result.Updated,
		"regional_prices", result.RegionalPrices)
	return result, nil
}

// GenerationOf 从 "m4.metal.small" 中取代际数字
func GenerationOf(name string) int {
	family := name
	if i := strings.Index(name, "."); i >= 0 {
		family = name[:i]
	}
	gen := 0
	for _, r := range family {
		if unicode.IsDigit(r) {
			gen = gen*10 + int(r-'0')
		} else if gen > 0 {
			break
		}
	}
	return gen
}

// ==================== 默认数据 ====================

// DefaultReferenceProducts 第 4 代基准 SKU 及标价
func DefaultReferenceProducts() []model.ReferenceProduct {
	return []model.ReferenceProduct{
		{Name: "m4.metal.small", CPU: "AMD 4244P @ 3.8 GHz", CPUCores: 6, RAMGB: 64, StorageDescription: "2 x 960GB NVMe", StorageTotalTB: 1.92, NetworkGbps: 20, PriceUSD: 189, Generation: 4},
		{Name: "m4.metal.medium", CPU: "AMD 9124 @ 3.0 GHz", CPUCores: 16, RAMGB: 128, StorageDescription: "2 x 480GB NVMe + 2 x 1.9TB NVMe", StorageTotalTB: 4.76, NetworkGbps: 20, PriceUSD: 455, Generation: 4},
		{Name: "m4.metal.large", CPU: "AMD 9254 @ 2.9 GHz", CPUCores: 24, RAMGB: 384, StorageDescription: "2 x 480GB NVMe + 2 x 3.8TB NVMe", StorageTotalTB: 8.56, NetworkGbps: 20, PriceUSD: 715, Generation: 4},
		{Name: "m4.metal.xlarge", CPU: "AMD 9455P @ 3.15 GHz", CPUCores: 48, RAMGB: 768, StorageDescription: "2 x 480GB NVMe + 2 x 3.8TB NVMe", StorageTotalTB: 8.56, NetworkGbps: 20, PriceUSD: 991, Generation: 4},
		{Name: "f4.metal.small", CPU: "AMD 4484PX @ 4.4 GHz", CPUCores: 12, RAMGB: 96, StorageDescription: "2 x 960GB NVMe", StorageTotalTB: 1.92, NetworkGbps: 20, PriceUSD: 291, Generation: 4},
		{Name: "f4.metal.medium", CPU: "AMD 4564P @ 4.5 GHz", CPUCores: 16, RAMGB: 192, StorageDescription: "2 x 480GB NVMe + 2 x 1.9TB NVMe", StorageTotalTB: 4.76, NetworkGbps: 20, PriceUSD: 557, Generation: 4},
		{Name: "f4.metal.large", CPU: "AMD 9275F @ 4.1 GHz", CPUCores: 24, RAMGB: 768, StorageDescription: "2 x 480GB NVMe + 2 x 3.8TB NVMe", StorageTotalTB: 8.56, NetworkGbps: 200, PriceUSD: 1109, Generation: 4},
		{Name: "rs4.metal.large", CPU: "AMD 9354P @ 3.25 GHz", CPUCores: 32, RAMGB: 768, StorageDescription: "2 x 480GB NVMe + 2 x 8TB NVMe", StorageTotalTB: 16.96, NetworkGbps: 200, PriceUSD: 1058, Generation: 4},
		{Name: "rs4.metal.xlarge", CPU: "AMD 9554P @ 3.1 GHz", CPUCores: 64, RAMGB: 1536, StorageDescription: "2 x 480GB NVMe + 4 x 8TB NVMe", StorageTotalTB: 32.96, NetworkGbps: 200, PriceUSD: 1799, Generation: 4},
	}
}

// Seed 只插入缺失的默认 SKU，已有数据不动
func (s *ReferenceService) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, p := range DefaultReferenceProducts() {
		existing, err := s.refRepo.FindByName(ctx, p.Name)
		if err != nil {
			return created, fmt.Errorf("查询基准产品失败: %w", err)
		}
		if existing != nil {
			continue
		}
		product := p
		if err := s.refRepo.Create(ctx, &product); err != nil {
			return created, fmt.Errorf("写入基准产品 %s 失败: %w", p.Name, err)
		}
		created++
	}
	s.log.Info("[Reference] 默认基准产品已写入", "created", created)
	return created, nil
}

// ==================== CRUD ====================

func (s *ReferenceService) List(ctx context.Context) ([]model.ReferenceProduct, error) {
	return s.refRepo.List(ctx)
}

func (s *ReferenceService) Get(ctx context.Context, id int64) (*model.ReferenceProduct, error) {
	product, err := s.refRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询基准产品失败: %w", err)
	}
	return product, nil
}

// Create 新建后重新匹配
func (s *ReferenceService) Create(ctx context.Context, in ReferenceInput) (*model.ReferenceProduct, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("名称不能为空: %w", ErrInvalidInput)
	}
	existing, err := s.refRepo.FindByName(ctx, strings.TrimSpace(*in.Name))
	if err != nil {
		return nil, fmt.Errorf("查询基准产品失败: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("基准产品 %s 已存在: %w", existing.Name, ErrInvalidInput)
	}

	product := &model.ReferenceProduct{}
	applyReferenceInput(product, in)
	if product.Generation == 0 {
		product.Generation = GenerationOf(product.Name)
	}
	if err := s.refRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("创建基准产品失败: %w", err)
	}
	if err := s.regenerate(ctx); err != nil {
		return nil, err
	}
	return product, nil
}

// Update 名称/核数/内存/价格变化时重新匹配
func (s *ReferenceService) Update(ctx context.Context, id int64, in ReferenceInput) (*model.ReferenceProduct, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *product

	applyReferenceInput(product, in)
	product.RegionalPrices = nil
	if err := s.refRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("更新基准产品失败: %w", err)
	}

	if before.Name != product.Name || before.CPUCores != product.CPUCores ||
		before.RAMGB != product.RAMGB || before.PriceUSD != product.PriceUSD {
		if err := s.regenerate(ctx); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete 级联删除区域价格与比价后重新匹配
func (s *ReferenceService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.refRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除基准产品失败: %w", err)
	}
	return s.regenerate(ctx)
}

func (s *ReferenceService) regenerate(ctx context.Context) error {
	if s.matcher == nil {
		return nil
	}
	if _, err := s.matcher.Regenerate(ctx); err != nil {
		return fmt.Errorf("重新生成比价失败: %w", err)
	}
	return nil
}

func applyReferenceInput(p *model.ReferenceProduct, in ReferenceInput) {
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
	if in.Generation != nil {
		p.Generation = *in.Generation
	}
}

// IsValidation 是否为参数类错误
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
