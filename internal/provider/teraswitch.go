package provider

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
)

// ==================== Teraswitch ====================

const (
	teraswitchSourceURL = "https://teraswitch.com/bare-metal/"
	teraswitchNetwork   = 25
)

type teraswitchResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Result  []teraswitchItem `json:"result"`
}

type teraswitchItem struct {
	Tier struct {
		ID             string  `json:"id"`
		CPU            string  `json:"cpu"`
		CPUDescription string  `json:"cpuDescription"`
		MonthlyPrice   float64 `json:"monthlyPrice"`
		MemoryOptions  []struct {
			GB           int     `json:"gb"`
			MonthlyPrice float64 `json:"monthlyPrice"`
			Default      bool    `json:"default"`
		} `json:"memoryOptions"`
		DriveSlots []teraswitchSlot `json:"driveSlots"`
	} `json:"tier"`
	MemoryGB int               `json:"memoryGb"`
	Quantity int               `json:"quantity"`
	Disks    map[string]string `json:"disks"`
}

type teraswitchSlot struct {
	ID      string `json:"id"`
	Default string `json:"default"`
	Options []struct {
		Name         string  `json:"name"`
		Type         string  `json:"type"`
		CapacityGB   float64 `json:"capacityGb"`
		MonthlyPrice float64 `json:"monthlyPrice"`
		Default      bool    `json:"default"`
	} `json:"options"`
}

// teraswitchEntry 一个城市内去重后的条目
type teraswitchEntry struct {
	City teraswitchCityRef
	Item teraswitchItem
}

type teraswitchCityRef struct {
	Code    string
	Name    string
	Country string
}

type TeraswitchAdapter struct {
	env    *Env
	cfg    config.TeraswitchConfig
	client *Client
}

func NewTeraswitchAdapter(env *Env, cfg config.TeraswitchConfig) (*TeraswitchAdapter, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("Teraswitch 需要 api_key/api_secret: %w", ErrMissingCredentials)
	}
	return &TeraswitchAdapter{
		env:    env,
		cfg:    cfg,
		client: NewClient(model.CompetitorTeraswitch, env.HTTP, cfg.Delay, env.Recorder),
	}, nil
}

func (a *TeraswitchAdapter) Competitor() model.Competitor { return model.CompetitorTeraswitch }

func (a *TeraswitchAdapter) FetchCatalog(ctx context.Context) ([]RawEntry, error) {
	headers := map[string]string{"Authorization": "Bearer " + a.cfg.APIKey + ":" + a.cfg.APISecret}
	base := strings.TrimRight(a.cfg.BaseURL, "/")

	var entries []RawEntry
	for _, city := range a.env.Rules.Locations.Teraswitch {
		seen := make(map[string]bool)
		for _, region := range city.Regions {
			var resp teraswitchResponse
			u := base + "/v2/Metal/Availability?" + url.Values{"Region": {region}}.Encode()
			if err := a.client.Get(ctx, u, headers, &resp); err != nil {
				if IsFatal(err) {
					return nil, err
				}
				a.env.Log.Warn("[Teraswitch] 获取地区库存失败", "region", region, "error", err)
				continue
			}
			if !resp.Success {
				a.env.Log.Warn("[Teraswitch] 地区返回失败", "region", region, "message", resp.Message)
				continue
			}
			// 同一城市多个地区按名称去重，保留首次出现
			for _, item := range resp.Result {
				name := teraswitchName(item)
				if seen[name] {
					continue
				}
				seen[name] = true
				entries = append(entries, teraswitchEntry{
					City: teraswitchCityRef{Code: city.Code, Name: city.City, Country: city.Country},
					Item: item,
				})
			}
		}
	}
	return entries, nil
}

func (a *TeraswitchAdapter) CityOf(entry RawEntry) (CityRef, bool) {
	e, ok := entry.(teraswitchEntry)
	if !ok || e.City.Code == "" {
		return CityRef{}, false
	}
	return CityRef{Code: "teraswitch-" + e.City.Code, Name: e.City.Name, Country: e.City.Country}, true
}

func (a *TeraswitchAdapter) SpecsOf(entry RawEntry) (Specs, bool) {
	e, ok := entry.(teraswitchEntry)
	if !ok {
		return Specs{}, false
	}
	item := e.Item

	price := item.Tier.MonthlyPrice
	for _, m := range item.Tier.MemoryOptions {
		if m.GB == item.MemoryGB {
			price += m.MonthlyPrice
			break
		}
	}
	price = math.Round(price)
	if price <= 0 {
		return Specs{}, false
	}

	return Specs{
		Name:        teraswitchName(item),
		CPU:         fmt.Sprintf("%s (%s)", item.Tier.CPU, item.Tier.CPUDescription),
		CPUCores:    a.env.coresFor(model.CompetitorTeraswitch, item.Tier.CPU, item.Tier.CPUDescription),
		RAMGB:       item.MemoryGB,
		Storage:     teraswitchStorage(item),
		NetworkGbps: teraswitchNetwork,
		PriceUSD:    price,
		SourceURL:   teraswitchSourceURL,
	}, true
}

func (a *TeraswitchAdapter) StockOf(entry RawEntry) Stock {
	e, ok := entry.(teraswitchEntry)
	if !ok {
		return Stock{}
	}
	return Stock{InStock: e.Item.Quantity > 0, Quantity: intPtr(e.Item.Quantity)}
}

// teraswitchName TS-{型号}-{内存}GB，如 TS-9454P-384GB
func teraswitchName(item teraswitchItem) string {
	model := strings.Replace(item.Tier.CPU, "AMD EPYC ", "", 1)
	model = strings.ReplaceAll(model, " ", "-")
	return fmt.Sprintf("TS-%s-%dGB", model, item.MemoryGB)
}

// teraswitchStorage 每个槽位取已选盘，没有时取槽位默认盘
func teraswitchStorage(item teraswitchItem) normalize.Storage {
	var parts []string
	var totalGB float64
	for _, slot := range item.Tier.DriveSlots {
		selected := item.Disks[slot.ID]
		if selected == "" {
			selected = slot.Default
		}
		idx := -1
		for i, o := range slot.Options {
			if o.Name == selected {
				idx = i
				break
			}
		}
		if idx < 0 {
			for i, o := range slot.Options {
				if o.Default {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			continue
		}
		opt := slot.Options[idx]
		totalGB += opt.CapacityGB
		parts = append(parts, strings.TrimSpace(opt.Name+" "+opt.Type))
	}
	if len(parts) == 0 {
		return normalize.Storage{Description: normalize.StorageNotSpecified}
	}
	return normalize.Storage{Description: strings.Join(parts, " + "), TotalTB: totalGB / 1000}
}
