package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
)

// ==================== Cherry Servers ====================

const cherrySourceURL = "https://www.cherryservers.com/pricing/dedicated-servers/"

type cherryPlan struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Specs struct {
		CPUs struct {
			Name      string  `json:"name"`
			Cores     int     `json:"cores"`
			Frequency float64 `json:"frequency"`
			Unit      string  `json:"unit"`
		} `json:"cpus"`
		Memory struct {
			Total float64 `json:"total"`
		} `json:"memory"`
		Storage []struct {
			Count int     `json:"count"`
			Size  float64 `json:"size"`
			Unit  string  `json:"unit"`
			Type  string  `json:"type"`
		} `json:"storage"`
		NICs struct {
			Name string `json:"name"`
		} `json:"nics"`
	} `json:"specs"`
	AvailableRegions []cherryRegion `json:"available_regions"`
	Pricing          []struct {
		Unit     string  `json:"unit"`
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	} `json:"pricing"`
}

type cherryRegion struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	StockQty int    `json:"stock_qty"`
}

type cherryEntry struct {
	Plan   cherryPlan
	Region cherryRegion
}

type CherryAdapter struct {
	env    *Env
	cfg    config.CherryConfig
	client *Client
}

func NewCherryAdapter(env *Env, cfg config.CherryConfig) (*CherryAdapter, error) {
	return &CherryAdapter{
		env:    env,
		cfg:    cfg,
		client: NewClient(model.CompetitorCherry, env.HTTP, cfg.Delay, env.Recorder),
	}, nil
}

func (a *CherryAdapter) Competitor() model.Competitor { return model.CompetitorCherry }

// FetchCatalog 只保留映射表中的地区
func (a *CherryAdapter) FetchCatalog(ctx context.Context) ([]RawEntry, error) {
	var plans []cherryPlan
	if err := a.client.Get(ctx, strings.TrimRight(a.cfg.BaseURL, "/")+"/plans", nil, &plans); err != nil {
		return nil, fmt.Errorf("拉取 Cherry Servers 套餐失败: %w", err)
	}

	var entries []RawEntry
	for _, p := range plans {
		for _, r := range p.AvailableRegions {
			if _, ok := a.env.Rules.Locations.Cherry[r.Slug]; !ok {
				continue
			}
			entries = append(entries, cherryEntry{Plan: p, Region: r})
		}
	}
	return entries, nil
}

func (a *CherryAdapter) CityOf(entry RawEntry) (CityRef, bool) {
	e, ok := entry.(cherryEntry)
	if !ok {
		return CityRef{}, false
	}
	loc, ok := a.env.Rules.Locations.Cherry[e.Region.Slug]
	if !ok {
		return CityRef{}, false
	}
	return CityRef{Code: "cherry-" + e.Region.Slug, Name: loc.City, Country: loc.Country}, true
}

func (a *CherryAdapter) SpecsOf(entry RawEntry) (Specs, bool) {
	e, ok := entry.(cherryEntry)
	if !ok {
		return Specs{}, false
	}
	p := e.Plan

	var price float64
	found := false
	for _, pr := range p.Pricing {
		if pr.Unit != "Monthly" {
			continue
		}
		currency := pr.Currency
		if currency == "" {
			currency = normalize.EUR
		}
		v, err := a.env.Rates.ToUSD(decimal.NewFromFloat(pr.Price), currency, 2)
		if err != nil {
			a.env.Log.Warn("[Cherry] 价格币种无法换算", "plan", p.Slug, "error", err)
			return Specs{}, false
		}
		price, found = v, true
		break
	}
	if !found || price <= 0 {
		return Specs{}, false
	}

	drives := make([]normalize.Drive, 0, len(p.Specs.Storage))
	for _, s := range p.Specs.Storage {
		gb, ok := normalize.ParseCapacityGB(fmt.Sprintf("%g%s", s.Size, s.Unit))
		if !ok {
			continue
		}
		drives = append(drives, normalize.Drive{Count: s.Count, CapacityGB: gb, Type: s.Type})
	}

	network := 1
	if gbps, ok := normalize.ParseNetworkSpeed(p.Specs.NICs.Name); ok {
		network = normalize.NetworkGbps(gbps)
	}

	cpu := p.Specs.CPUs
	cores := cpu.Cores
	if cores <= 0 {
		cores = a.env.coresFor(model.CompetitorCherry, cpu.Name, "")
	}

	return Specs{
		Name:        strings.TrimSpace(strings.Replace(p.Name, "AMD ", "", 1)),
		CPU:         fmt.Sprintf("%s (%dc @ %g%s)", cpu.Name, cpu.Cores, cpu.Frequency, cpu.Unit),
		CPUCores:    cores,
		RAMGB:       int(p.Specs.Memory.Total),
		Storage:     normalize.DescribeStorage(drives),
		NetworkGbps: network,
		PriceUSD:    price,
		SourceURL:   cherrySourceURL + p.Slug,
	}, true
}

func (a *CherryAdapter) StockOf(entry RawEntry) Stock {
	e, ok := entry.(cherryEntry)
	if !ok {
		return Stock{}
	}
	return Stock{InStock: e.Region.StockQty > 0, Quantity: intPtr(e.Region.StockQty)}
}
