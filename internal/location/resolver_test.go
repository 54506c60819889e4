package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.City{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func TestResolver_ResolveCity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	r := NewResolver(repository.NewCityRepository(db), nil)

	a, err := r.ResolveCity(ctx, "ovh-vin", "Vint Hill", "USA")
	require.NoError(t, err)
	b, err := r.ResolveCity(ctx, "ovh-vin", "Vint Hill", "USA")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	// 新的运行(新 Resolver)仍复用已有城市
	r2 := NewResolver(repository.NewCityRepository(db), nil)
	c, err := r2.ResolveCity(ctx, "ovh-vin", "Renamed", "USA")
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID)
	assert.Equal(t, "Vint Hill", c.Name)

	var count int64
	db.Model(&model.City{}).Count(&count)
	assert.Equal(t, int64(1), count)

	_, err = r.ResolveCity(ctx, " ", "x", "y")
	assert.Error(t, err)
}

func TestHomeRegions(t *testing.T) {
	h := NewHomeRegions(config.MustDefaultRules().HomeRegions)
	assert.Equal(t, 17, h.Len())

	tests := []struct {
		name    string
		city    string
		country string
		want    bool
	}{
		{"精确匹配", "Ashburn", "USA", true},
		{"大小写不敏感", "new york", "usa", true},
		{"带重音", "São Paulo", "Brazil", true},
		{"国家不符", "London", "Canada", false},
		{"不在白名单", "Warsaw", "Poland", false},
		{"部分匹配不算", "York", "USA", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsHomeRegion(tt.city, tt.country))
		})
	}

	assert.False(t, h.IsHomeCity(nil))
	assert.True(t, h.IsHomeCity(&model.City{Name: "Tokyo", Country: "Japan"}))
}
