package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/cpu"
	"metal_price_tracker/internal/location"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// ==================== 规格区间匹配 ====================

// Matcher 按容差窗口为基准 SKU 挑选竞品，纯内存计算
type Matcher struct {
	rules             *config.RuleSet
	classifier        *cpu.Classifier
	home              *location.HomeRegions
	regions           *RegionTable
	includeOutOfStock bool
	log               *logger.Logger
}

// NewMatcher 由当前规则集构建
func NewMatcher(rules *config.RuleSet, includeOutOfStock bool, log *logger.Logger) (*Matcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	classifier, err := cpu.NewClassifier(rules.CPU)
	if err != nil {
		return nil, fmt.Errorf("构建 CPU 分类器失败: %w", err)
	}
	return &Matcher{
		rules:             rules,
		classifier:        classifier,
		home:              location.NewHomeRegions(rules.HomeRegions),
		regions:           NewRegionTable(rules),
		includeOutOfStock: includeOutOfStock,
		log:               log,
	}, nil
}

// GenerateComparisons refs 需预加载 RegionalPrices，comps 需预加载 City
// 输出按 (基准 ID, 竞品 ID) 排序，相同输入得到相同结果
func (m *Matcher) GenerateComparisons(refs []model.ReferenceProduct, comps []model.CompetitorProduct) []model.Comparison {
	refs = append([]model.ReferenceProduct(nil), refs...)
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })

	candidates := make([]model.CompetitorProduct, 0, len(comps))
	for _, c := range comps {
		if m.candidate(c) {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	pricing := NewPricingResolver(m.regions, refs)

	var out []model.Comparison
	for _, ref := range refs {
		window, ok := m.rules.WindowFor(ref.Name)
		if !ok {
			m.log.Warn("[Matcher] 基准 SKU 没有容差窗口，跳过", "reference", ref.Name)
			continue
		}

		matched := 0
		for _, comp := range candidates {
			if !window.Contains(comp.CPUCores, comp.RAMGB) {
				continue
			}
			refPrice := pricing.ResolvePrice(ref.ID, comp.City.Country)
			cmp := model.Comparison{
				ReferenceProductID:     ref.ID,
				CompetitorProductID:    comp.ID,
				PriceDifferencePercent: PriceDifference(refPrice, comp.PriceUSD),
				Notes:                  fmt.Sprintf("Auto-matched: %d cores, %dGB RAM", comp.CPUCores, comp.RAMGB),
			}
			if refPrice != ref.PriceUSD {
				p := refPrice
				cmp.RegionalReferencePriceUSD = &p
			}
			out = append(out, cmp)
			matched++
		}
		if matched == 0 {
			m.log.Warn("[Matcher] 基准 SKU 没有匹配到竞品", "reference", ref.Name)
		}
	}
	return out
}

// candidate 与基准 SKU 无关的过滤条件
func (m *Matcher) candidate(c model.CompetitorProduct) bool {
	if !m.classifier.IsEligible(c.CPU) {
		return false
	}
	if !m.home.IsHomeCity(c.City) {
		return false
	}
	if !m.includeOutOfStock && !c.InStock {
		return false
	}
	return true
}

// PriceDifference (竞品价 - 基准价) / 基准价 * 100，基准价为 0 时返回 0
func PriceDifference(referencePrice, competitorPrice float64) float64 {
	if referencePrice == 0 {
		return 0
	}
	return (competitorPrice - referencePrice) / referencePrice * 100
}

// ==================== 规格相似度 ====================

// SpecSimilarity 核数 40% / 内存 35% / 存储 25%，0-100 取整
func SpecSimilarity(ref *model.ReferenceProduct, comp *model.CompetitorProduct) int {
	if ref == nil || comp == nil {
		return 0
	}
	score := closeness(float64(ref.CPUCores), float64(comp.CPUCores))*0.4 +
		closeness(float64(ref.RAMGB), float64(comp.RAMGB))*0.35 +
		closeness(ref.StorageTotalTB, comp.StorageTotalTB)*0.25
	return int(math.Round(score))
}

func closeness(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi <= 0 {
		return 100
	}
	return 100 - math.Abs(a-b)/hi*100
}

// ==================== 服务 ====================

// MatcherService 重新生成全部比价记录
type MatcherService struct {
	refRepo        repository.ReferenceProductRepository
	compRepo       repository.CompetitorProductRepository
	comparisonRepo repository.ComparisonRepository
	rules          *config.RuleStore
	matching       config.MatchingConfig
	log            *logger.Logger
}

func NewMatcherService(
	refRepo repository.ReferenceProductRepository,
	compRepo repository.CompetitorProductRepository,
	comparisonRepo repository.ComparisonRepository,
	rules *config.RuleStore,
	matching config.MatchingConfig,
	log *logger.Logger,
) *MatcherService {
	if log == nil {
		log = logger.Nop()
	}
	return &MatcherService{
		refRepo:        refRepo,
		compRepo:       compRepo,
		comparisonRepo: comparisonRepo,
		rules:          rules,
		matching:       matching,
		log:            log,
	}
}

// Regenerate 读取全部 SKU，生成比价并整表替换，返回写入条数
func (s *MatcherService) Regenerate(ctx context.Context) (int, error) {
	matcher, err := NewMatcher(s.rules.Current(), s.matching.IncludeOutOfStock, s.log)
	if err != nil {
		return 0, err
	}

	refs, err := s.refRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("读取基准产品失败: %w", err)
	}
	comps, err := s.compRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("读取竞品失败: %w", err)
	}

	comparisons := matcher.GenerateComparisons(refs, comps)
	if err := s.comparisonRepo.ReplaceAll(ctx, comparisons); err != nil {
		return 0, fmt.Errorf("写入比价记录失败: %w", err)
	}

	s.log.Info("[Matcher] 比价记录已重新生成",
		"references", len(refs), "competitors", len(comps), "comparisons", len(comparisons))
	return len(comparisons), nil
}
