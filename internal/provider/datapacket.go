package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
)

// ==================== DataPacket (GraphQL) ====================

const (
	dataPacketSourceURL = "https://www.datapacket.com/pricing"

	dataPacketQuery = `{
  provisioningConfigurations {
    configurationId
    memory
    stockCount
    monthlyHwPrice { amount currency }
    cpus { name cores threads }
    location { name short region }
    uplink { ports { capacity } }
    storage { type size }
  }
}`
)

type dataPacketResponse struct {
	Data struct {
		ProvisioningConfigurations []dataPacketConfig `json:"provisioningConfigurations"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type dataPacketConfig struct {
	ConfigurationID string `json:"configurationId"`
	Memory          int    `json:"memory"`
	StockCount      int    `json:"stockCount"`
	MonthlyHwPrice  struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"monthlyHwPrice"`
	CPUs []struct {
		Name    string `json:"name"`
		Cores   int    `json:"cores"`
		Threads int    `json:"threads"`
	} `json:"cpus"`
	Location struct {
		Name   string `json:"name"`
		Short  string `json:"short"`
		Region string `json:"region"`
	} `json:"location"`
	Uplink struct {
		Ports []struct {
			Capacity float64 `json:"capacity"`
		} `json:"ports"`
	} `json:"uplink"`
	Storage []struct {
		Type string  `json:"type"`
		Size float64 `json:"size"`
	} `json:"storage"`
}

// DataPacketAdapter 按 (competitor, name, city) 增量更新
type DataPacketAdapter struct {
	env    *Env
	cfg    config.DataPacketConfig
	client *Client
}

func NewDataPacketAdapter(env *Env, cfg config.DataPacketConfig) (*DataPacketAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("DataPacket 需要 api_key: %w", ErrMissingCredentials)
	}
	return &DataPacketAdapter{
		env:    env,
		cfg:    cfg,
		client: NewClient(model.CompetitorDataPacket, env.HTTP, cfg.Delay, env.Recorder),
	}, nil
}

func (a *DataPacketAdapter) Competitor() model.Competitor { return model.CompetitorDataPacket }

func (a *DataPacketAdapter) Upserts() bool { return true }

func (a *DataPacketAdapter) FetchCatalog(ctx context.Context) ([]RawEntry, error) {
	var resp dataPacketResponse
	err := a.client.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     a.cfg.Endpoint,
		Headers: map[string]string{"Authorization": "Bearer " + a.cfg.APIKey},
		Body:    map[string]string{"query": dataPacketQuery},
		Result:  &resp,
	})
	if err != nil {
		return nil, fmt.Errorf("拉取 DataPacket 配置失败: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("DataPacket GraphQL 错误: %s", strings.Join(msgs, "; "))
	}

	entries := make([]RawEntry, 0, len(resp.Data.ProvisioningConfigurations))
	for _, c := range resp.Data.ProvisioningConfigurations {
		if len(c.CPUs) == 0 {
			continue
		}
		entries = append(entries, c)
	}
	return entries, nil
}

func (a *DataPacketAdapter) CityOf(entry RawEntry) (CityRef, bool) {
	c, ok := entry.(dataPacketConfig)
	if !ok || c.Location.Short == "" {
		return CityRef{}, false
	}
	country, ok := a.env.Rules.Locations.DataPacket[c.Location.Name]
	if !ok {
		return CityRef{}, false
	}
	return CityRef{
		Code:    "datapacket-" + strings.ToLower(c.Location.Short),
		Name:    c.Location.Name,
		Country: country,
	}, true
}

func (a *DataPacketAdapter) SpecsOf(entry RawEntry) (Specs, bool) {
	c, ok := entry.(dataPacketConfig)
	if !ok || len(c.CPUs) == 0 {
		return Specs{}, false
	}
	amount, err := strconv.ParseFloat(c.MonthlyHwPrice.Amount, 64)
	if err != nil || amount <= 0 {
		return Specs{}, false
	}
	cpu := c.CPUs[0]

	cores := cpu.Cores
	if cores <= 0 {
		cores = a.env.coresFor(model.CompetitorDataPacket, cpu.Name, "")
	}

	ports := make([]float64, 0, len(c.Uplink.Ports))
	for _, p := range c.Uplink.Ports {
		ports = append(ports, p.Capacity)
	}

	return Specs{
		Name:        fmt.Sprintf("%s-%dGB-%s", cpu.Name, c.Memory, c.ConfigurationID),
		CPU:         fmt.Sprintf("AMD %s (%dc/%dt)", cpu.Name, cpu.Cores, cpu.Threads),
		CPUCores:    cores,
		RAMGB:       c.Memory,
		Storage:     dataPacketStorage(c),
		NetworkGbps: normalize.NetworkGbps(ports...),
		PriceUSD:    amount,
		SourceURL:   dataPacketSourceURL,
	}, true
}

func (a *DataPacketAdapter) StockOf(entry RawEntry) Stock {
	c, ok := entry.(dataPacketConfig)
	if !ok {
		return Stock{}
	}
	return Stock{InStock: c.StockCount > 0, Quantity: intPtr(c.StockCount)}
}

// dataPacketStorage 按 (类型, 容量) 分组，保持首次出现顺序
func dataPacketStorage(c dataPacketConfig) normalize.Storage {
	type key struct {
		typ  string
		size float64
	}
	counts := make(map[key]int)
	var order []key
	for _, d := range c.Storage {
		k := key{typ: strings.ReplaceAll(d.Type, "_", " "), size: d.Size}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	drives := make([]normalize.Drive, 0, len(order))
	for _, k := range order {
		drives = append(drives, normalize.Drive{Count: counts[k], CapacityGB: k.size, Type: k.typ})
	}
	return normalize.DescribeStorage(drives)
}
