package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
	"metal_price_tracker/pkg/storage"
)

// ==================== 静态快照 (无公开 API 的供应商) ====================

//go:embed snapshots/hetzner.json
var defaultHetznerSnapshot []byte

// Snapshot 人工采集的目录快照
type Snapshot struct {
	Competitor model.Competitor  `json:"competitor"`
	CapturedAt time.Time         `json:"capturedAt"`
	SourceURL  string            `json:"sourceUrl"`
	Currency   string            `json:"currency"`
	Cities     []SnapshotCity    `json:"cities"`
	Products   []SnapshotProduct `json:"products"`
}

type SnapshotCity struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

type SnapshotProduct struct {
	Name               string  `json:"name"`
	CPU                string  `json:"cpu"`
	CPUCores           int     `json:"cpuCores"`
	RAMGB              int     `json:"ramGb"`
	StorageDescription string  `json:"storageDescription"`
	StorageTotalTB     float64 `json:"storageTotalTb"`
	NetworkGbps        int     `json:"networkGbps"`
	Price              float64 `json:"price"`
	InStock            *bool   `json:"inStock,omitempty"`
	SourceURL          string  `json:"sourceUrl,omitempty"`
}

// ParseSnapshot 解析并做基础校验
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	if !s.Competitor.Valid() {
		return nil, fmt.Errorf("快照供应商无效: %q", s.Competitor)
	}
	if len(s.Cities) == 0 {
		return nil, fmt.Errorf("快照缺少城市")
	}
	if s.Currency == "" {
		s.Currency = normalize.USD
	}
	return &s, nil
}

// snapshotEntry 一个产品在一个城市
type snapshotEntry struct {
	Snapshot *Snapshot
	City     SnapshotCity
	Product  SnapshotProduct
}

// SnapshotAdapter 从快照存储读取目录，读取失败时回退到内置快照
type SnapshotAdapter struct {
	env      *Env
	store    storage.Store
	key      string
	fallback []byte
}

func NewHetznerAdapter(env *Env, cfg config.HetznerConfig, store storage.Store) *SnapshotAdapter {
	return &SnapshotAdapter{env: env, store: store, key: cfg.SnapshotKey, fallback: defaultHetznerSnapshot}
}

func (a *SnapshotAdapter) Competitor() model.Competitor { return model.CompetitorHetzner }

func (a *SnapshotAdapter) load(ctx context.Context) (*Snapshot, error) {
	if a.store != nil && a.key != "" {
		data, err := a.store.Get(ctx, a.key)
		switch {
		case err == nil:
			return ParseSnapshot(data)
		case errors.Is(err, storage.ErrNotFound):
			a.env.Log.Debug("[Snapshot] 存储中没有快照，使用内置快照", "key", a.key)
		default:
			a.env.Log.Warn("[Snapshot] 读取快照失败，使用内置快照", "key", a.key, "error", err)
		}
	}
	return ParseSnapshot(a.fallback)
}

func (a *SnapshotAdapter) FetchCatalog(ctx context.Context) ([]RawEntry, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Competitor != a.Competitor() {
		return nil, fmt.Errorf("快照供应商 %s 与适配器 %s 不一致", snap.Competitor, a.Competitor())
	}
	a.env.Log.Info("[Snapshot] 已加载快照", "competitor", snap.Competitor,
		"captured_at", snap.CapturedAt.Format(time.RFC3339), "products", len(snap.Products))

	entries := make([]RawEntry, 0, len(snap.Cities)*len(snap.Products))
	for _, city := range snap.Cities {
		for _, p := range snap.Products {
			entries = append(entries, snapshotEntry{Snapshot: snap, City: city, Product: p})
		}
	}
	return entries, nil
}

func (a *SnapshotAdapter) CityOf(entry RawEntry) (CityRef, bool) {
	e, ok := entry.(snapshotEntry)
	if !ok || e.City.Code == "" {
		return CityRef{}, false
	}
	prefix := strings.ToLower(string(e.Snapshot.Competitor))
	return CityRef{Code: prefix + "-" + e.City.Code, Name: e.City.Name, Country: e.City.Country}, true
}

func (a *SnapshotAdapter) SpecsOf(entry RawEntry) (Specs, bool) {
	e, ok := entry.(snapshotEntry)
	if !ok || e.Product.Price <= 0 {
		return Specs{}, false
	}
	p := e.Product
	price, err := a.env.Rates.ToUSD(decimal.NewFromFloat(p.Price), e.Snapshot.Currency, 2)
	if err != nil {
		a.env.Log.Warn("[Snapshot] 价格币种无法换算", "product", p.Name, "error", err)
		return Specs{}, false
	}

	cores := p.CPUCores
	if cores <= 0 {
		cores = a.env.coresFor(e.Snapshot.Competitor, p.CPU, p.CPU)
	}
	desc := p.StorageDescription
	if desc == "" {
		desc = normalize.StorageNotSpecified
	}
	source := p.SourceURL
	if source == "" {
		source = e.Snapshot.SourceURL
	}

	return Specs{
		Name:        p.Name,
		CPU:         p.CPU,
		CPUCores:    cores,
		RAMGB:       p.RAMGB,
		Storage:     normalize.Storage{Description: desc, TotalTB: p.StorageTotalTB},
		NetworkGbps: p.NetworkGbps,
		PriceUSD:    price,
		SourceURL:   source,
	}, true
}

// StockOf 快照未标注时视为有货
func (a *SnapshotAdapter) StockOf(entry RawEntry) Stock {
	e, ok := entry.(snapshotEntry)
	if !ok {
		return Stock{}
	}
	if e.Product.InStock == nil {
		return Stock{InStock: true}
	}
	return Stock{InStock: *e.Product.InStock}
}
