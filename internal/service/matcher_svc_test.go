package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
)

var (
	ashburn   = &model.City{BaseModel: model.BaseModel{ID: 1}, Code: "x-ash", Name: "Ashburn", Country: "USA"}
	frankfurt = &model.City{BaseModel: model.BaseModel{ID: 2}, Code: "x-fra", Name: "Frankfurt", Country: "Germany"}
	paris     = &model.City{BaseModel: model.BaseModel{ID: 3}, Code: "x-par", Name: "Paris", Country: "France"}
)

func comp(id int64, cpu string, cores, ram int, price float64, city *model.City, inStock bool) model.CompetitorProduct {
	return model.CompetitorProduct{
		BaseModel:  model.BaseModel{ID: id},
		Competitor: model.CompetitorHetzner,
		Name:       "sku",
		CPU:        cpu,
		CPUCores:   cores,
		RAMGB:      ram,
		PriceUSD:   price,
		CityID:     city.ID,
		City:       city,
		InStock:    inStock,
	}
}

func newTestMatcher(t *testing.T, includeOutOfStock bool) *Matcher {
	t.Helper()
	m, err := NewMatcher(config.MustDefaultRules(), includeOutOfStock, nil)
	require.NoError(t, err)
	return m
}

func TestMatcher_GenerateComparisons(t *testing.T) {
	refs := []model.ReferenceProduct{
		{
			BaseModel:      model.BaseModel{ID: 10},
			Name:           "m4.metal.small",
			PriceUSD:       189,
			RegionalPrices: []model.RegionalPrice{{Region: "DE", PriceUSD: 210}},
		},
	}
	comps := []model.CompetitorProduct{
		comp(1, "AMD EPYC 4244P", 6, 64, 150, ashburn, true),
		comp(2, "AMD EPYC 4344P", 8, 64, 220.5, frankfurt, true),
		comp(3, "AMD EPYC 7443P", 6, 64, 100, ashburn, true),  // 旧代
		comp(4, "AMD EPYC 4244P", 6, 64, 100, paris, true),    // 非本地区域
		comp(5, "AMD EPYC 4244P", 12, 64, 100, ashburn, true), // 超出窗口
		comp(6, "AMD EPYC 4244P", 6, 48, 170, ashburn, false), // 缺货，默认纳入
	}

	got := newTestMatcher(t, true).GenerateComparisons(refs, comps)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0].CompetitorProductID)
	assert.InDelta(t, (150.0-189.0)/189.0*100, got[0].PriceDifferencePercent, 1e-9)
	assert.Nil(t, got[0].RegionalReferencePriceUSD)
	assert.Equal(t, "Auto-matched: 6 cores, 64GB RAM", got[0].Notes)

	assert.Equal(t, int64(2), got[1].CompetitorProductID)
	require.NotNil(t, got[1].RegionalReferencePriceUSD)
	assert.Equal(t, 210.0, *got[1].RegionalReferencePriceUSD)
	assert.InDelta(t, 5.0, got[1].PriceDifferencePercent, 1e-9)
	assert.Equal(t, model.PositionCompetitive, got[1].Position())

	assert.Equal(t, int64(6), got[2].CompetitorProductID)

	// 排除缺货
	got = newTestMatcher(t, false).GenerateComparisons(refs, comps)
	assert.Len(t, got, 2)
}

func TestMatcher_PricePositionScenarios(t *testing.T) {
	refs := []model.ReferenceProduct{
		{BaseModel: model.BaseModel{ID: 1}, Name: "m4.metal.large", CPUCores: 24, RAMGB: 384, PriceUSD: 715},
	}
	tests := []struct {
		name     string
		price    float64
		wantDiff float64
		want     model.PricePosition
	}{
		{name: "775 持平", price: 775, wantDiff: 8.39, want: model.PositionCompetitive},
		{name: "1200 基准更便宜", price: 1200, wantDiff: 67.83, want: model.PositionCheaper},
	}

	m := newTestMatcher(t, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comps := []model.CompetitorProduct{comp(1, "AMD EPYC 9354", 24, 384, tt.price, ashburn, true)}
			got := m.GenerateComparisons(refs, comps)
			require.Len(t, got, 1)
			assert.InDelta(t, (tt.price-715)/715*100, got[0].PriceDifferencePercent, 1e-9)
			assert.InDelta(t, tt.wantDiff, got[0].PriceDifferencePercent, 0.01)
			assert.Equal(t, tt.want, got[0].Position())
			assert.Equal(t, "Auto-matched: 24 cores, 384GB RAM", got[0].Notes)
		})
	}
}

func TestMatcher_EdgeCases(t *testing.T) {
	m := newTestMatcher(t, true)
	comps := []model.CompetitorProduct{comp(1, "AMD EPYC 9124", 6, 64, 150, ashburn, true)}

	t.Run("没有容差窗口的 SKU 跳过", func(t *testing.T) {
		refs := []model.ReferenceProduct{{BaseModel: model.BaseModel{ID: 1}, Name: "x9.metal.tiny", PriceUSD: 100}}
		assert.Empty(t, m.GenerateComparisons(refs, comps))
	})

	t.Run("基准价为 0 时价差为 0", func(t *testing.T) {
		refs := []model.ReferenceProduct{{BaseModel: model.BaseModel{ID: 1}, Name: "m4.metal.small", PriceUSD: 0}}
		got := m.GenerateComparisons(refs, comps)
		require.Len(t, got, 1)
		assert.Zero(t, got[0].PriceDifferencePercent)
	})

	t.Run("窗口边界包含", func(t *testing.T) {
		refs := []model.ReferenceProduct{{BaseModel: model.BaseModel{ID: 1}, Name: "m4.metal.small", PriceUSD: 100}}
		edge := []model.CompetitorProduct{
			comp(1, "AMD EPYC 9124", 5, 48, 100, ashburn, true),
			comp(2, "AMD EPYC 9124", 8, 80, 100, ashburn, true),
			comp(3, "AMD EPYC 9124", 4, 80, 100, ashburn, true),
			comp(4, "AMD EPYC 9124", 8, 81, 100, ashburn, true),
		}
		assert.Len(t, m.GenerateComparisons(refs, edge), 2)
	})

	t.Run("输入顺序不影响结果", func(t *testing.T) {
		refs := []model.ReferenceProduct{
			{BaseModel: model.BaseModel{ID: 2}, Name: "m4.metal.small", PriceUSD: 189},
			{BaseModel: model.BaseModel{ID: 1}, Name: "f4.metal.small", PriceUSD: 291},
		}
		many := []model.CompetitorProduct{
			comp(3, "AMD EPYC 9124", 8, 64, 120, ashburn, true),
			comp(1, "AMD EPYC 9124", 6, 64, 150, frankfurt, true),
			comp(2, "AMD EPYC 9124", 12, 96, 200, ashburn, true),
		}
		first := m.GenerateComparisons(refs, many)
		reversed := []model.CompetitorProduct{many[2], many[1], many[0]}
		second := m.GenerateComparisons([]model.ReferenceProduct{refs[1], refs[0]}, reversed)
		assert.Equal(t, first, second)
		require.Len(t, first, 3)
		assert.Equal(t, int64(1), first[0].ReferenceProductID)
	})
}

func TestPriceDifference(t *testing.T) {
	tests := []struct {
		name      string
		ref, comp float64
		want      float64
	}{
		{"竞品更贵", 100, 120, 20},
		{"竞品更便宜", 200, 150, -25},
		{"基准价为 0", 0, 150, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PriceDifference(tt.ref, tt.comp), 1e-9)
		})
	}
}

func TestSpecSimilarity(t *testing.T) {
	ref := &model.ReferenceProduct{CPUCores: 8, RAMGB: 64, StorageTotalTB: 2}

	tests := []struct {
		name string
		comp *model.CompetitorProduct
		want int
	}{
		{"完全一致", &model.CompetitorProduct{CPUCores: 8, RAMGB: 64, StorageTotalTB: 2}, 100},
		{"核数减半", &model.CompetitorProduct{CPUCores: 4, RAMGB: 64, StorageTotalTB: 2}, 80},
		{"存储为 0", &model.CompetitorProduct{CPUCores: 8, RAMGB: 64, StorageTotalTB: 0}, 75},
		{"空竞品", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpecSimilarity(ref, tt.comp))
		})
	}

	// 双方存储都为 0 视为一致
	assert.Equal(t, 100, SpecSimilarity(
		&model.ReferenceProduct{CPUCores: 8, RAMGB: 64},
		&model.CompetitorProduct{CPUCores: 8, RAMGB: 64},
	))
}

func TestMatcherService_Regenerate(t *testing.T) {
	db := setupServiceTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	seedReference(t, r, "m4.metal.small", 6, 64, 189, nil)
	seedCompetitor(t, r, compFixture{competitor: model.CompetitorVultr, name: "a", cpu: "AMD EPYC 4244P", cores: 6, ram: 64, price: 150,
		cityCode: "vultr-ewr", cityName: "New York", country: "USA", inStock: true})
	seedCompetitor(t, r, compFixture{competitor: model.CompetitorVultr, name: "b", cpu: "AMD EPYC 4244P", cores: 6, ram: 64, price: 150,
		cityCode: "vultr-cdg", cityName: "Paris", country: "France", inStock: true})

	svc := NewMatcherService(r.ref, r.comp, r.comparison, testRuleStore(), config.MatchingConfig{IncludeOutOfStock: true}, nil)

	n, err := svc.Regenerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 重复执行结果不变
	n, err = svc.Regenerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := r.comparison.List(ctx, repository.ComparisonFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].CompetitorProduct.Name)
}
