package service

import (
	"context"
	"fmt"
	"strings"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
)

// ==================== 国家 -> 价格区域 ====================

// RegionTable 竞品所在国家映射到基准价格区域
type RegionTable struct {
	countries  map[string]string
	eu         map[string]bool
	euFallback string
}

func NewRegionTable(rules *config.RuleSet) *RegionTable {
	t := &RegionTable{
		countries:  make(map[string]string, len(rules.CountryRegions)),
		eu:         make(map[string]bool, len(rules.EUCountries)),
		euFallback: rules.EUFallbackRegion,
	}
	for country, region := range rules.CountryRegions {
		t.countries[normalizeCountry(country)] = region
	}
	for _, c := range rules.EUCountries {
		t.eu[normalizeCountry(c)] = true
	}
	return t
}

// RegionOf 先查显式映射，再按欧盟国家回退
func (t *RegionTable) RegionOf(country string) (string, bool) {
	key := normalizeCountry(country)
	if region, ok := t.countries[key]; ok {
		return region, true
	}
	if t.euFallback != "" && t.eu[key] {
		return t.euFallback, true
	}
	return "", false
}

func normalizeCountry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ==================== 区域价格解析 ====================

// PricingResolver 基于预加载数据的区域价格解析，不访问数据库
type PricingResolver struct {
	regions  *RegionTable
	defaults map[int64]float64
	regional map[int64]map[string]float64
}

// NewPricingResolver refs 需预加载 RegionalPrices
func NewPricingResolver(regions *RegionTable, refs []model.ReferenceProduct) *PricingResolver {
	r := &PricingResolver{
		regions:  regions,
		defaults: make(map[int64]float64, len(refs)),
		regional: make(map[int64]map[string]float64, len(refs)),
	}
	for _, ref := range refs {
		r.defaults[ref.ID] = ref.PriceUSD
		if len(ref.RegionalPrices) == 0 {
			continue
		}
		m := make(map[string]float64, len(ref.RegionalPrices))
		for _, p := range ref.RegionalPrices {
			m[p.Region] = p.PriceUSD
		}
		r.regional[ref.ID] = m
	}
	return r
}

// ResolvePrice 未知产品返回 0；无区域价格时回退默认价
func (r *PricingResolver) ResolvePrice(referenceID int64, competitorCountry string) float64 {
	price, _ := r.resolve(referenceID, competitorCountry)
	return price
}

func (r *PricingResolver) resolve(referenceID int64, country string) (price float64, region string) {
	def, ok := r.defaults[referenceID]
	if !ok {
		return 0, ""
	}
	region, ok = r.regions.RegionOf(country)
	if !ok {
		return def, ""
	}
	if p, ok := r.regional[referenceID][region]; ok {
		return p, region
	}
	return def, ""
}

// ==================== 仓储版本 ====================

// PriceResolution API 返回的解析结果
type PriceResolution struct {
	ReferenceProductID int64   `json:"reference_product_id"`
	Country            string  `json:"country"`
	Region             string  `json:"region,omitempty"`
	PriceUSD           float64 `json:"price_usd"`
	DefaultPriceUSD    float64 `json:"default_price_usd"`
	IsRegional         bool    `json:"is_regional"`
}

// PricingService 按需查询数据库的区域价格
type PricingService struct {
	refRepo repository.ReferenceProductRepository
	rules   *config.RuleStore
}

func NewPricingService(refRepo repository.ReferenceProductRepository, rules *config.RuleStore) *PricingService {
	return &PricingService{refRepo: refRepo, rules: rules}
}

// ResolvePrice 与 PricingResolver 语义一致；产品不存在时价格为 0
func (s *PricingService) ResolvePrice(ctx context.Context, referenceID int64, country string) (*PriceResolution, error) {
	res := &PriceResolution{ReferenceProductID: referenceID, Country: country}

	ref, err := s.refRepo.GetByID(ctx, referenceID)
	if err != nil {
		if isNotFound(err) {
			return res, nil
		}
		return nil, fmt.Errorf("查询基准产品失败: %w", err)
	}
	res.DefaultPriceUSD = ref.PriceUSD
	res.PriceUSD = ref.PriceUSD

	region, ok := NewRegionTable(s.rules.Current()).RegionOf(country)
	if !ok {
		return res, nil
	}
	res.Region = region

	rp, err := s.refRepo.GetRegionalPrice(ctx, referenceID, region)
	if err != nil {
		return nil, fmt.Errorf("查询区域价格失败: %w", err)
	}
	if rp != nil {
		res.PriceUSD = rp.PriceUSD
		res.IsRegional = true
	}
	return res, nil
}
