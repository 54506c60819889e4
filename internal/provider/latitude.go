package provider

import (
	"context"
	"fmt"
	"strings"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
	"metal_price_tracker/pkg/utils"
)

// ==================== 基准厂商目录 ====================

// referenceCompetitorTag 基准目录的原始响应归档目录名
const referenceCompetitorTag model.Competitor = "REFERENCE"

type latitudePlansResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Slug  string `json:"slug"`
			Name  string `json:"name"`
			Specs struct {
				CPU struct {
					Type  string  `json:"type"`
					Clock float64 `json:"clock"`
					Cores int     `json:"cores"`
					Count int     `json:"count"`
				} `json:"cpu"`
				Memory struct {
					Total int `json:"total"`
				} `json:"memory"`
				Drives []struct {
					Count int    `json:"count"`
					Size  string `json:"size"`
					Type  string `json:"type"`
				} `json:"drives"`
				NICs []struct {
					Count int    `json:"count"`
					Type  string `json:"type"`
				} `json:"nics"`
			} `json:"specs"`
			Regions []struct {
				Name    string `json:"name"`
				Pricing struct {
					USD struct {
						Month float64 `json:"month"`
					} `json:"USD"`
				} `json:"pricing"`
			} `json:"regions"`
		} `json:"attributes"`
	} `json:"data"`
}

// ReferencePlan 归一化后的基准套餐
type ReferencePlan struct {
	Name            string
	CPU             string
	CPUCores        int
	RAMGB           int
	Storage         normalize.Storage
	NetworkGbps     int
	DefaultPriceUSD float64
	// RegionalPrices 区域代码 -> 月价(USD)，不含 0 价格
	RegionalPrices map[string]float64
	// UnknownRegions 映射表中没有的地区名
	UnknownRegions []string
}

// ReferenceCatalog 基准厂商 /plans 接口
type ReferenceCatalog struct {
	cfg     config.ReferenceConfig
	regions map[string]string
	client  *Client
}

func NewReferenceCatalog(cfg config.ReferenceConfig, rules *config.RuleSet, httpOpts utils.ClientOptions, recorder *Recorder) (*ReferenceCatalog, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("基准目录需要 api_key: %w", ErrMissingCredentials)
	}
	return &ReferenceCatalog{
		cfg:     cfg,
		regions: rules.Locations.ReferenceRegions,
		client:  NewClient(referenceCompetitorTag, httpOpts, cfg.Delay, recorder),
	}, nil
}

// FetchPlans 拉取并按名称前缀过滤
func (c *ReferenceCatalog) FetchPlans(ctx context.Context) ([]ReferencePlan, error) {
	var resp latitudePlansResponse
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := c.client.Get(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/plans", headers, &resp); err != nil {
		return nil, fmt.Errorf("拉取基准目录失败: %w", err)
	}

	defaultRegion := c.cfg.DefaultRegion
	if defaultRegion == "" {
		defaultRegion = "United States"
	}

	var plans []ReferencePlan
	for _, d := range resp.Data {
		attrs := d.Attributes
		if !hasAnyPrefix(attrs.Name, c.cfg.PlanPrefixes) {
			continue
		}

		plan := ReferencePlan{
			Name:           attrs.Name,
			CPU:            fmt.Sprintf("%s @ %g GHz", attrs.Specs.CPU.Type, attrs.Specs.CPU.Clock),
			CPUCores:       attrs.Specs.CPU.Cores * maxInt(attrs.Specs.CPU.Count, 1),
			RAMGB:          attrs.Specs.Memory.Total,
			NetworkGbps:    1,
			RegionalPrices: make(map[string]float64),
		}

		drives := make([]normalize.Drive, 0, len(attrs.Specs.Drives))
		for _, dr := range attrs.Specs.Drives {
			gb, ok := normalize.ParseCapacityGB(dr.Size)
			if !ok {
				continue
			}
			drives = append(drives, normalize.Drive{Count: dr.Count, CapacityGB: gb, Type: dr.Type})
		}
		plan.Storage = normalize.DescribeStorage(drives)

		if len(attrs.Specs.NICs) > 0 {
			if gbps, ok := normalize.ParseNetworkSpeed(attrs.Specs.NICs[0].Type); ok {
				plan.NetworkGbps = normalize.NetworkGbps(gbps)
			}
		}

		for _, r := range attrs.Regions {
			month := r.Pricing.USD.Month
			if r.Name == defaultRegion {
				plan.DefaultPriceUSD = month
			}
			code, ok := c.regions[r.Name]
			if !ok {
				plan.UnknownRegions = append(plan.UnknownRegions, r.Name)
				continue
			}
			if month <= 0 {
				continue
			}
			plan.RegionalPrices[code] = month
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
