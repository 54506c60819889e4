package model

import (
	"fmt"
	"strings"
	"time"
)

// Competitor 竞品供应商
type Competitor string

const (
	CompetitorVultr      Competitor = "VULTR"
	CompetitorOVHcloud   Competitor = "OVHCLOUD"
	CompetitorHetzner    Competitor = "HETZNER"
	CompetitorTeraswitch Competitor = "TERASWITCH"
	CompetitorCherry     Competitor = "CHERRYSERVERS"
	CompetitorLimestone  Competitor = "LIMESTONENETWORKS"
	CompetitorServersCom Competitor = "SERVERSCOM"
	CompetitorDataPacket Competitor = "DATAPACKET"
)

// AllCompetitors 全部供应商（统计时保证每家都有条目）
var AllCompetitors = []Competitor{
	CompetitorVultr,
	CompetitorOVHcloud,
	CompetitorHetzner,
	CompetitorTeraswitch,
	CompetitorCherry,
	CompetitorLimestone,
	CompetitorServersCom,
	CompetitorDataPacket,
}

// Valid 是否为已知供应商
func (c Competitor) Valid() bool {
	for _, v := range AllCompetitors {
		if v == c {
			return true
		}
	}
	return false
}

// ParseCompetitor 大小写不敏感，另接受常见简称
func ParseCompetitor(s string) (Competitor, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	switch key {
	case "OVH":
		return CompetitorOVHcloud, nil
	case "CHERRY":
		return CompetitorCherry, nil
	case "LIMESTONE":
		return CompetitorLimestone, nil
	case "SERVERS.COM":
		return CompetitorServersCom, nil
	}
	c := Competitor(key)
	if !c.Valid() {
		return "", fmt.Errorf("未知供应商: %s", s)
	}
	return c, nil
}

// CompetitorProduct 竞品 SKU（已归一化）
type CompetitorProduct struct {
	BaseModel
	Competitor         Competitor `gorm:"size:32;uniqueIndex:idx_competitor_name_city;index;not null" json:"competitor"`
	Name               string     `gorm:"size:255;uniqueIndex:idx_competitor_name_city;not null" json:"name"`
	CPU                string     `gorm:"size:255" json:"cpu"`
	CPUCores           int        `gorm:"not null;default:0;index" json:"cpu_cores"`
	RAMGB              int        `gorm:"column:ram_gb;not null;default:0;index" json:"ram_gb"`
	StorageDescription string     `gorm:"size:255" json:"storage_description"`
	StorageTotalTB     float64    `gorm:"column:storage_total_tb;type:decimal(10,3);default:0" json:"storage_total_tb"`
	NetworkGbps        int        `gorm:"default:0" json:"network_gbps"`
	PriceUSD           float64    `gorm:"column:price_usd;type:decimal(10,2);not null" json:"price_usd"`
	CityID             int64      `gorm:"uniqueIndex:idx_competitor_name_city;not null" json:"city_id"`
	City               *City      `gorm:"foreignKey:CityID" json:"city,omitempty"`
	SourceURL          string     `gorm:"size:512" json:"source_url"`
	InventoryURL       *string    `gorm:"size:512" json:"inventory_url,omitempty"`
	InStock            bool       `gorm:"not null" json:"in_stock"`
	Quantity           *int       `json:"quantity,omitempty"`
	LastVerified       *time.Time `json:"last_verified,omitempty"`
	LastInventoryCheck *time.Time `json:"last_inventory_check,omitempty"`
}

func (CompetitorProduct) TableName() string {
	return "competitor_products"
}
