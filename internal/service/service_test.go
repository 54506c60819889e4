package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
)

// ==================== 测试辅助 ====================

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取连接池失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.Models()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func testRuleStore() *config.RuleStore {
	return config.StaticRuleStore(config.MustDefaultRules())
}

// repos 一组基于同一个测试库的仓储
type repos struct {
	city       repository.CityRepository
	ref        repository.ReferenceProductRepository
	comp       repository.CompetitorProductRepository
	comparison repository.ComparisonRepository
	history    repository.PriceHistoryRepository
	run        repository.PipelineRunRepository
}

func newRepos(db *gorm.DB) repos {
	return repos{
		city:       repository.NewCityRepository(db),
		ref:        repository.NewReferenceProductRepository(db),
		comp:       repository.NewCompetitorProductRepository(db),
		comparison: repository.NewComparisonRepository(db),
		history:    repository.NewPriceHistoryRepository(db),
		run:        repository.NewPipelineRunRepository(db),
	}
}

func seedReference(t *testing.T, r repos, name string, cores, ram int, price float64, regional map[string]float64) *model.ReferenceProduct {
	t.Helper()
	ctx := context.Background()
	p := &model.ReferenceProduct{Name: name, CPU: "AMD 4244P @ 3.8 GHz", CPUCores: cores, RAMGB: ram, PriceUSD: price, Generation: 4}
	require.NoError(t, r.ref.Create(ctx, p))
	if len(regional) > 0 {
		prices := make([]model.RegionalPrice, 0, len(regional))
		for region, v := range regional {
			prices = append(prices, model.RegionalPrice{Region: region, PriceUSD: v})
		}
		require.NoError(t, r.ref.ReplaceRegionalPrices(ctx, p.ID, prices))
	}
	return p
}

type compFixture struct {
	competitor model.Competitor
	name       string
	cpu        string
	cores      int
	ram        int
	price      float64
	cityCode   string
	cityName   string
	country    string
	inStock    bool
}

func seedCompetitor(t *testing.T, r repos, f compFixture) *model.CompetitorProduct {
	t.Helper()
	ctx := context.Background()
	city, err := r.city.FindOrCreate(ctx, &model.City{Code: f.cityCode, Name: f.cityName, Country: f.country})
	require.NoError(t, err)

	cpu := f.cpu
	if cpu == "" {
		cpu = "AMD EPYC 4244P"
	}
	p := &model.CompetitorProduct{
		Competitor: f.competitor,
		Name:       f.name,
		CPU:        cpu,
		CPUCores:   f.cores,
		RAMGB:      f.ram,
		PriceUSD:   f.price,
		CityID:     city.ID,
		InStock:    f.inStock,
	}
	require.NoError(t, r.comp.Create(ctx, p))
	p.City = city
	return p
}

// countingRegenerator 记录重新匹配次数
type countingRegenerator struct {
	calls int
}

func (c *countingRegenerator) Regenerate(ctx context.Context) (int, error) {
	c.calls++
	return 0, nil
}

func ptr[T any](v T) *T {
	return &v
}
