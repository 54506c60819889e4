package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/controller"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/internal/router"
	"metal_price_tracker/internal/service"
)

// ==================== 测试辅助 ====================

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeTrigger 记录触发次数，err 非空时拒绝
type fakeTrigger struct {
	calls int
	err   error
}

func (f *fakeTrigger) TriggerRun() error {
	f.calls++
	return f.err
}

func (f *fakeTrigger) Status() map[string]interface{} {
	return map[string]interface{}{"running": f.calls > 0 && f.err == nil}
}

type testAPI struct {
	engine  *gin.Engine
	db      *gorm.DB
	cities  repository.CityRepository
	refs    repository.ReferenceProductRepository
	comps   repository.CompetitorProductRepository
	trigger *fakeTrigger
}

func setupCtlTestDB(t *testing.T) *gorm.DB {
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

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	db := setupCtlTestDB(t)
	rules := config.StaticRuleStore(config.MustDefaultRules())

	cityRepo := repository.NewCityRepository(db)
	refRepo := repository.NewReferenceProductRepository(db)
	compRepo := repository.NewCompetitorProductRepository(db)
	comparisonRepo := repository.NewComparisonRepository(db)

	matcher := service.NewMatcherService(refRepo, compRepo, comparisonRepo, rules, config.MatchingConfig{IncludeOutOfStock: true}, nil)
	dashboard := service.NewDashboardService(service.DashboardDeps{
		RefRepo:        refRepo,
		CompRepo:       compRepo,
		ComparisonRepo: comparisonRepo,
		HistoryRepo:    repository.NewPriceHistoryRepository(db),
		CityRepo:       cityRepo,
		RunRepo:        repository.NewPipelineRunRepository(db),
		Rules:          rules,
	})
	trigger := &fakeTrigger{}

	engine := router.New(&router.Controllers{
		Comparison: controller.NewComparisonController(dashboard, matcher),
		Dashboard:  controller.NewDashboardController(dashboard),
		Reference:  controller.NewReferenceController(service.NewReferenceService(refRepo, matcher, nil)),
		Competitor: controller.NewCompetitorController(service.NewCompetitorService(compRepo, cityRepo, matcher, nil)),
		Pricing:    controller.NewPricingController(service.NewPricingService(refRepo, rules)),
		Pipeline:   controller.NewPipelineController(trigger, dashboard),
	}, router.Options{})

	return &testAPI{engine: engine, db: db, cities: cityRepo, refs: refRepo, comps: compRepo, trigger: trigger}
}

// seed 一个基准产品（含 DE 区域价）和一个纽约的 Vultr 竞品
func (a *testAPI) seed(t *testing.T) (*model.ReferenceProduct, *model.CompetitorProduct) {
	t.Helper()
	ctx := context.Background()

	ref := &model.ReferenceProduct{Name: "m4.metal.small", CPU: "AMD 4244P @ 3.8 GHz", CPUCores: 6, RAMGB: 64, PriceUSD: 200, Generation: 4}
	require.NoError(t, a.refs.Create(ctx, ref))
	require.NoError(t, a.refs.ReplaceRegionalPrices(ctx, ref.ID, []model.RegionalPrice{{Region: "DE", PriceUSD: 220}}))

	city, err := a.cities.FindOrCreate(ctx, &model.City{Code: "vultr-ewr", Name: "New York", Country: "USA"})
	require.NoError(t, err)
	comp := &model.CompetitorProduct{
		Competitor: model.CompetitorVultr,
		Name:       "vbm-6c-64gb",
		CPU:        "AMD EPYC 4244P",
		CPUCores:   6,
		RAMGB:      64,
		PriceUSD:   150,
		CityID:     city.ID,
		InStock:    true,
	}
	require.NoError(t, a.comps.Create(ctx, comp))
	return ref, comp
}

// envelope 统一响应结构
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Total   int64           `json:"total"`
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthz(t *testing.T) {
	a := setupAPI(t)
	w, _ := a.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
