package provider

import (
	"context"
	"fmt"
	"strings"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
)

// ==================== Vultr ====================

const (
	vultrSourceURL = "https://www.vultr.com/products/bare-metal/"
	vultrNetwork   = 10
)

type vultrPlansResponse struct {
	PlansMetal []vultrPlan `json:"plans_metal"`
}

type vultrPlan struct {
	ID              string   `json:"id"`
	CPUCount        int      `json:"cpu_count"`
	CPUCores        int      `json:"cpu_cores"`
	CPUThreads      int      `json:"cpu_threads"`
	CPUManufacturer string   `json:"cpu_manufacturer"`
	CPUModel        string   `json:"cpu_model"`
	CPUMHz          float64  `json:"cpu_mhz"`
	RAM             float64  `json:"ram"` // MB
	Disk            float64  `json:"disk"`
	DiskCount       int      `json:"disk_count"`
	MonthlyCost     float64  `json:"monthly_cost"`
	Type            string   `json:"type"`
	DeployOnDemand  bool     `json:"deploy_ondemand"`
	Locations       []string `json:"locations"`
}

type vultrRegionsResponse struct {
	Regions []vultrRegion `json:"regions"`
}

type vultrRegion struct {
	ID        string `json:"id"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Continent string `json:"continent"`
}

// vultrEntry 一个套餐在一个地区
type vultrEntry struct {
	Plan   vultrPlan
	Region vultrRegion
}

type VultrAdapter struct {
	env    *Env
	cfg    config.VultrConfig
	client *Client
}

// NewVultrAdapter 公开接口，api_key 可选
func NewVultrAdapter(env *Env, cfg config.VultrConfig) (*VultrAdapter, error) {
	return &VultrAdapter{
		env:    env,
		cfg:    cfg,
		client: NewClient(model.CompetitorVultr, env.HTTP, cfg.Delay, env.Recorder),
	}, nil
}

func (a *VultrAdapter) Competitor() model.Competitor { return model.CompetitorVultr }

func (a *VultrAdapter) FetchCatalog(ctx context.Context) ([]RawEntry, error) {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	var headers map[string]string
	if a.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}
	}

	var plans vultrPlansResponse
	if err := a.client.Get(ctx, base+"/plans-metal", headers, &plans); err != nil {
		return nil, fmt.Errorf("拉取 Vultr 套餐失败: %w", err)
	}
	var regions vultrRegionsResponse
	if err := a.client.Get(ctx, base+"/regions", headers, &regions); err != nil {
		return nil, fmt.Errorf("拉取 Vultr 地区失败: %w", err)
	}

	byID := make(map[string]vultrRegion, len(regions.Regions))
	for _, r := range regions.Regions {
		byID[r.ID] = r
	}

	var entries []RawEntry
	for _, p := range plans.PlansMetal {
		if !strings.EqualFold(p.CPUManufacturer, "AMD") {
			continue
		}
		for _, loc := range p.Locations {
			region, ok := byID[loc]
			if !ok {
				a.env.Log.Warn("[Vultr] 未知地区，跳过", "plan", p.ID, "region", loc)
				continue
			}
			entries = append(entries, vultrEntry{Plan: p, Region: region})
		}
	}
	return entries, nil
}

func (a *VultrAdapter) CityOf(entry RawEntry) (CityRef, bool) {
	e, ok := entry.(vultrEntry)
	if !ok || e.Region.ID == "" {
		return CityRef{}, false
	}
	country := e.Region.Country
	if name, ok := a.env.Rules.Locations.VultrCountries[strings.ToUpper(country)]; ok {
		country = name
	}
	return CityRef{Code: "vultr-" + e.Region.ID, Name: e.Region.City, Country: country}, true
}

func (a *VultrAdapter) SpecsOf(entry RawEntry) (Specs, bool) {
	e, ok := entry.(vultrEntry)
	if !ok || e.Plan.MonthlyCost <= 0 {
		return Specs{}, false
	}
	p := e.Plan
	ram := normalize.RAMFromMB(p.RAM)

	cores := p.CPUCores
	if cores <= 0 {
		cores = a.env.coresFor(model.CompetitorVultr, p.CPUModel, "")
	}

	return Specs{
		Name:        fmt.Sprintf("Vultr-%s-%dGB", strings.Join(strings.Fields(p.CPUModel), "-"), ram),
		CPU:         fmt.Sprintf("AMD %s (%dc/%dt @ %.1fGHz)", p.CPUModel, p.CPUCores, p.CPUThreads, p.CPUMHz/1000),
		CPUCores:    cores,
		RAMGB:       ram,
		Storage:     normalize.DescribeStorage([]normalize.Drive{{Count: p.DiskCount, CapacityGB: p.Disk, Type: p.Type}}),
		NetworkGbps: vultrNetwork,
		PriceUSD:    p.MonthlyCost,
		SourceURL:   vultrSourceURL,
	}, true
}

// StockOf Vultr 不返回数量
func (a *VultrAdapter) StockOf(entry RawEntry) Stock {
	e, ok := entry.(vultrEntry)
	if !ok {
		return Stock{}
	}
	return Stock{InStock: e.Plan.DeployOnDemand}
}
