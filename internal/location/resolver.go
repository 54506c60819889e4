package location

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/logger"
)

// ==================== 城市解析 ====================

// Resolver 供应商机房代码 -> City，单次运行内缓存
type Resolver struct {
	repo repository.CityRepository
	log  *logger.Logger

	mu    sync.Mutex
	cache map[string]*model.City
}

// NewResolver 每次流水线运行创建一个
func NewResolver(repo repository.CityRepository, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		repo:  repo,
		log:   log,
		cache: make(map[string]*model.City),
	}
}

// ResolveCity 按代码查找城市，首次出现时创建；已存在的城市不会被更新
func (r *Resolver) ResolveCity(ctx context.Context, providerCode, rawName, rawCountry string) (*model.City, error) {
	code := strings.TrimSpace(providerCode)
	if code == "" {
		return nil, fmt.Errorf("城市代码为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if city, ok := r.cache[code]; ok {
		return city, nil
	}

	city, err := r.repo.FindOrCreate(ctx, &model.City{
		Code:    code,
		Name:    strings.TrimSpace(rawName),
		Country: strings.TrimSpace(rawCountry),
	})
	if err != nil {
		return nil, fmt.Errorf("解析城市 %s 失败: %w", code, err)
	}
	if city == nil {
		return nil, fmt.Errorf("城市 %s 写入后未找到", code)
	}

	r.cache[code] = city
	return city, nil
}

// ==================== 本地区域 ====================

// HomeRegions 基准厂商有机房的城市白名单
type HomeRegions struct {
	set map[string]struct{}
}

// NewHomeRegions 由规则集构建
func NewHomeRegions(cities []config.HomeCity) *HomeRegions {
	h := &HomeRegions{set: make(map[string]struct{}, len(cities))}
	for _, c := range cities {
		h.set[homeKey(c.Name, c.Country)] = struct{}{}
	}
	return h
}

// IsHomeRegion 大小写不敏感的精确匹配
func (h *HomeRegions) IsHomeRegion(name, country string) bool {
	_, ok := h.set[homeKey(name, country)]
	return ok
}

// IsHomeCity nil 城市视为不在白名单
func (h *HomeRegions) IsHomeCity(city *model.City) bool {
	if city == nil {
		return false
	}
	return h.IsHomeRegion(city.Name, city.Country)
}

// Len 白名单城市数
func (h *HomeRegions) Len() int {
	return len(h.set)
}

func homeKey(name, country string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(country))
}
