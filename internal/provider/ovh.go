package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
)

// ==================== OVHcloud ====================

// ovhFamilies 参与比价的服务器产品线(product 前缀)
var ovhFamilies = []string{"23scaleamd", "26scaleamd", "24adv", "26adv", "23scaleintel", "26scaleintel"}

// 区域专属计划，选基础计划时跳过
var ovhRegionalSuffixes = []string{"-sgp", "-syd", "-mum"}

const (
	ovhSourceURL  = "https://www.ovhcloud.com/en/bare-metal/scale/"
	ovhPriceScale = 100000000
	ovhNetwork    = 25
)

type ovhCatalog struct {
	Plans []ovhPlan `json:"plans"`
}

type ovhPlan struct {
	PlanCode      string `json:"planCode"`
	InvoiceName   string `json:"invoiceName"`
	Product       string `json:"product"`
	AddonFamilies []struct {
		Name    string   `json:"name"`
		Addons  []string `json:"addons"`
		Default *string  `json:"default"`
	} `json:"addonFamilies"`
	Pricings []ovhPricing `json:"pricings"`
}

type ovhPricing struct {
	Capacities   []string `json:"capacities"`
	IntervalUnit string   `json:"intervalUnit"`
	Price        int64    `json:"price"`
	Commitment   int      `json:"commitment"`
	Mode         string   `json:"mode"`
}

type ovhAvailability struct {
	FQN         string `json:"fqn"`
	PlanCode    string `json:"planCode"`
	Server      string `json:"server"`
	Datacenters []struct {
		Availability string `json:"availability"`
		Datacenter   string `json:"datacenter"`
	} `json:"datacenters"`
}

// ovhEntry 一个产品在一个机房的条目
type ovhEntry struct {
	Product      string
	Series       string
	CPU          string
	RAMGB        int
	StorageAddon string
	PriceCAD     decimal.Decimal
	Datacenter   string
	Availability string
}

// OVHAdapter 签名请求的 OVH 目录适配器
type OVHAdapter struct {
	env    *Env
	cfg    config.OVHConfig
	client *Client
}

func NewOVHAdapter(env *Env, cfg config.OVHConfig) (*OVHAdapter, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.ConsumerKey == "" {
		return nil, fmt.Errorf("OVH 需要 app_key/app_secret/consumer_key: %w", ErrMissingCredentials)
	}
	return &OVHAdapter{
		env:    env,
		cfg:    cfg,
		client: NewClient(model.CompetitorOVHcloud, env.HTTP, cfg.Delay, env.Recorder),
	}, nil
}

func (a *OVHAdapter) Competitor() model.Competitor { return model.CompetitorOVHcloud }

// OVHSignature $1$ + sha1(secret+consumer+method+url+body+timestamp)
func OVHSignature(secret, consumer, method, fullURL, body string, timestamp int64) string {
	raw := strings.Join([]string{secret, consumer, method, fullURL, body, strconv.FormatInt(timestamp, 10)}, "+")
	sum := sha1.Sum([]byte(raw))
	return "$1$" + hex.EncodeToString(sum[:])
}

func (a *OVHAdapter) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	fullURL := strings.TrimRight(a.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	ts := a.env.Now().Unix()
	headers := map[string]string{
		"X-Ovh-Application": a.cfg.AppKey,
		"X-Ovh-Timestamp":   strconv.FormatInt(ts, 10),
		"X-Ovh-Signature":   OVHSignature(a.cfg.AppSecret, a.cfg.ConsumerKey, http.MethodGet, fullURL, "", ts),
		"X-Ovh-Consumer":    a.cfg.ConsumerKey,
	}
	return a.client.Get(ctx, fullURL, headers, out)
}

func (a *OVHAdapter) FetchCatalog(ctx context.Context) ([]RawEntry, error) {
	subsidiary := a.cfg.Subsidiary
	if subsidiary == "" {
		subsidiary = "CA"
	}

	var catalog ovhCatalog
	if err := a.get(ctx, "/order/catalog/public/baremetalServers", url.Values{"ovhSubsidiary": {subsidiary}}, &catalog); err != nil {
		return nil, fmt.Errorf("拉取 OVH 目录失败: %w", err)
	}

	// 按 product 分组，保持目录顺序
	groups := make(map[string][]ovhPlan)
	var products []string
	for _, p := range catalog.Plans {
		if !hasAnyPrefix(p.Product, ovhFamilies) {
			continue
		}
		if _, ok := groups[p.Product]; !ok {
			products = append(products, p.Product)
		}
		groups[p.Product] = append(groups[p.Product], p)
	}

	var entries []RawEntry
	for _, product := range products {
		base := ovhBasePlan(groups[product])
		series, cpuName := parseOVHInvoiceName(base.InvoiceName)

		pricing, ok := ovhMonthlyPricing(base.Pricings)
		if !ok {
			a.env.Log.Warn("[OVH] 未找到月付价格，跳过", "product", product)
			continue
		}

		ram := 128
		if addon := ovhAddonDefault(base, "memory"); addon != "" {
			if gb, ok := normalize.RAMFromAddon(addon); ok {
				ram = gb
			} else {
				ram = 0
			}
		}

		var avails []ovhAvailability
		if err := a.get(ctx, "/dedicated/server/datacenter/availabilities", url.Values{"server": {product}}, &avails); err != nil {
			if IsFatal(err) {
				return nil, err
			}
			a.env.Log.Warn("[OVH] 获取库存失败，按无条目处理", "product", product, "error", err)
			continue
		}

		best, order := bestOVHAvailability(avails)
		for _, dc := range order {
			entries = append(entries, ovhEntry{
				Product:      product,
				Series:       series,
				CPU:          cpuName,
				RAMGB:        ram,
				StorageAddon: ovhAddonDefault(base, "storage"),
				PriceCAD:     decimal.NewFromInt(pricing.Price).Div(decimal.NewFromInt(ovhPriceScale)),
				Datacenter:   dc,
				Availability: best[dc],
			})
		}
	}
	return entries, nil
}

func (a *OVHAdapter) CityOf(entry RawEntry) (CityRef, bool) {
	e, ok := entry.(ovhEntry)
	if !ok {
		return CityRef{}, false
	}
	loc, ok := a.env.Rules.Locations.OVH[e.Datacenter]
	if !ok {
		return CityRef{}, false
	}
	return CityRef{Code: "ovh-" + e.Datacenter, Name: loc.City, Country: loc.Country}, true
}

func (a *OVHAdapter) SpecsOf(entry RawEntry) (Specs, bool) {
	e, ok := entry.(ovhEntry)
	if !ok {
		return Specs{}, false
	}
	price, err := a.env.Rates.ToUSD(e.PriceCAD, normalize.CAD, 0)
	if err != nil || price <= 0 {
		return Specs{}, false
	}
	cpuName := e.CPU
	if !strings.HasPrefix(strings.ToUpper(cpuName), "AMD") && strings.Contains(strings.ToUpper(cpuName), "EPYC") {
		cpuName = "AMD " + cpuName
	}
	return Specs{
		Name:        fmt.Sprintf("%s (%s)", strings.ToUpper(e.Series), e.Product),
		CPU:         cpuName,
		CPUCores:    a.env.coresFor(model.CompetitorOVHcloud, e.CPU, ""),
		RAMGB:       e.RAMGB,
		Storage:     normalize.ParseOVHStorageAddon(e.StorageAddon),
		NetworkGbps: ovhNetwork,
		PriceUSD:    price,
		SourceURL:   ovhSourceURL,
	}, true
}

func (a *OVHAdapter) StockOf(entry RawEntry) Stock {
	e, ok := entry.(ovhEntry)
	if !ok {
		return Stock{}
	}
	return OVHStock(e.Availability)
}

// OVHStock 库存等级 -> 是否有货与估算数量
func OVHStock(availability string) Stock {
	switch availability {
	case "", "unavailable", "unknown":
		return Stock{InStock: false, Quantity: intPtr(0)}
	}
	switch {
	case strings.Contains(availability, "1H-high"):
		return Stock{InStock: true, Quantity: intPtr(10)}
	case strings.Contains(availability, "1H-low"):
		return Stock{InStock: true, Quantity: intPtr(3)}
	case strings.Contains(availability, "24H"):
		return Stock{InStock: true, Quantity: intPtr(5)}
	case strings.Contains(availability, "72H"):
		return Stock{InStock: true, Quantity: intPtr(2)}
	case strings.Contains(availability, "480H"):
		return Stock{InStock: true, Quantity: intPtr(1)}
	case strings.Contains(strings.ToUpper(availability), "1H"):
		return Stock{InStock: true}
	}
	return Stock{InStock: false, Quantity: intPtr(0)}
}

// ovhAvailabilityRank 数字越小越好
func ovhAvailabilityRank(a string) int {
	switch a {
	case "1H-high":
		return 1
	case "1H-low", "1H":
		return 2
	case "24H":
		return 3
	case "72H":
		return 4
	case "480H":
		return 5
	default:
		return 6
	}
}

// bestOVHAvailability 每个机房取最好的库存等级，返回机房首次出现的顺序
func bestOVHAvailability(avails []ovhAvailability) (map[string]string, []string) {
	best := make(map[string]string)
	var order []string
	for _, av := range avails {
		for _, dc := range av.Datacenters {
			cur, seen := best[dc.Datacenter]
			if !seen {
				order = append(order, dc.Datacenter)
				best[dc.Datacenter] = dc.Availability
				continue
			}
			if ovhAvailabilityRank(dc.Availability) <= ovhAvailabilityRank(cur) {
				best[dc.Datacenter] = dc.Availability
			}
		}
	}
	return best, order
}

func ovhBasePlan(plans []ovhPlan) ovhPlan {
	for _, p := range plans {
		regional := false
		for _, s := range ovhRegionalSuffixes {
			if strings.Contains(p.PlanCode, s) {
				regional = true
				break
			}
		}
		if !regional {
			return p
		}
	}
	return plans[0]
}

// parseOVHInvoiceName "SCALE-a1 | AMD EPYC 9135" -> ("SCALE-a1", "AMD EPYC 9135")
func parseOVHInvoiceName(name string) (series, cpuName string) {
	parts := strings.SplitN(name, " | ", 2)
	series = strings.TrimSpace(parts[0])
	cpuName = "Unknown CPU"
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		cpuName = strings.TrimSpace(parts[1])
	}
	return series, cpuName
}

func ovhMonthlyPricing(pricings []ovhPricing) (ovhPricing, bool) {
	for _, p := range pricings {
		if p.IntervalUnit == "month" && p.Commitment == 0 && p.Mode == "default" && containsString(p.Capacities, "renew") {
			return p, true
		}
	}
	return ovhPricing{}, false
}

// ovhAddonDefault 取附加项族的默认值，没有默认值时取第一个
func ovhAddonDefault(p ovhPlan, family string) string {
	for _, f := range p.AddonFamilies {
		if f.Name != family {
			continue
		}
		if f.Default != nil && *f.Default != "" {
			return *f.Default
		}
		if len(f.Addons) > 0 {
			return f.Addons[0]
		}
	}
	return ""
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
