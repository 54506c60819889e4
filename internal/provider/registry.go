package provider

import (
	"errors"
	"fmt"
	"strings"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/pkg/storage"
)

// ErrProviderDisabled 供应商未启用或不存在
var ErrProviderDisabled = errors.New("供应商未启用")

// Registry 按配置构建适配器，每次运行使用当次加载的规则重新构建
type Registry struct {
	cfg   config.ProvidersConfig
	store storage.Store
}

func NewRegistry(cfg config.ProvidersConfig, store storage.Store) *Registry {
	return &Registry{cfg: cfg, store: store}
}

// Enabled 已启用的供应商，按配置顺序；未出现在 order 中的排在最后
func (r *Registry) Enabled() []model.Competitor {
	enabled := map[model.Competitor]bool{
		model.CompetitorOVHcloud:   r.cfg.OVH.Enabled,
		model.CompetitorTeraswitch: r.cfg.Teraswitch.Enabled,
		model.CompetitorDataPacket: r.cfg.DataPacket.Enabled,
		model.CompetitorVultr:      r.cfg.Vultr.Enabled,
		model.CompetitorCherry:     r.cfg.Cherry.Enabled,
		model.CompetitorHetzner:    r.cfg.Hetzner.Enabled,
	}

	var out []model.Competitor
	added := make(map[model.Competitor]bool)
	for _, name := range r.cfg.Order {
		c := model.Competitor(strings.ToUpper(strings.TrimSpace(name)))
		if enabled[c] && !added[c] {
			out = append(out, c)
			added[c] = true
		}
	}
	for _, c := range model.AllCompetitors {
		if enabled[c] && !added[c] {
			out = append(out, c)
			added[c] = true
		}
	}
	return out
}

// Build 构建所有已启用的适配器
func (r *Registry) Build(env *Env) ([]Adapter, error) {
	competitors := r.Enabled()
	adapters := make([]Adapter, 0, len(competitors))
	for _, c := range competitors {
		a, err := r.build(env, c)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// Get 构建单个供应商的适配器
func (r *Registry) Get(env *Env, competitor model.Competitor) (Adapter, error) {
	for _, c := range r.Enabled() {
		if c == competitor {
			return r.build(env, c)
		}
	}
	return nil, fmt.Errorf("%s: %w", competitor, ErrProviderDisabled)
}

// Validate 启动时检查凭证，缺失即返回 ErrMissingCredentials
func (r *Registry) Validate(env *Env) error {
	_, err := r.Build(env)
	return err
}

func (r *Registry) build(env *Env, c model.Competitor) (Adapter, error) {
	switch c {
	case model.CompetitorOVHcloud:
		return NewOVHAdapter(env, r.cfg.OVH)
	case model.CompetitorTeraswitch:
		return NewTeraswitchAdapter(env, r.cfg.Teraswitch)
	case model.CompetitorDataPacket:
		return NewDataPacketAdapter(env, r.cfg.DataPacket)
	case model.CompetitorVultr:
		return NewVultrAdapter(env, r.cfg.Vultr)
	case model.CompetitorCherry:
		return NewCherryAdapter(env, r.cfg.Cherry)
	case model.CompetitorHetzner:
		return NewHetznerAdapter(env, r.cfg.Hetzner, r.store), nil
	}
	return nil, fmt.Errorf("%s: %w", c, ErrProviderDisabled)
}
