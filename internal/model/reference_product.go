package model

// ReferenceProduct 基准厂商 SKU（被比较的一方）
type ReferenceProduct struct {
	BaseModel
	Name               string  `gorm:"size:100;uniqueIndex;not null" json:"name"` // 如 m4.metal.large
	CPU                string  `gorm:"size:255" json:"cpu"`
	CPUCores           int     `gorm:"not null;default:0" json:"cpu_cores"`
	RAMGB              int     `gorm:"column:ram_gb;not null;default:0" json:"ram_gb"`
	StorageDescription string  `gorm:"size:255" json:"storage_description"`
	StorageTotalTB     float64 `gorm:"column:storage_total_tb;type:decimal(10,3);default:0" json:"storage_total_tb"`
	NetworkGbps        int     `gorm:"default:0" json:"network_gbps"`
	PriceUSD           float64 `gorm:"column:price_usd;type:decimal(10,2);not null;default:0" json:"price_usd"` // 默认（美国）价格
	Generation         int     `gorm:"default:0" json:"generation"`

	RegionalPrices []RegionalPrice `gorm:"foreignKey:ReferenceProductID" json:"regional_prices,omitempty"`
}

func (ReferenceProduct) TableName() string {
	return "reference_products"
}

// RegionalPrice 基准 SKU 的区域价格
type RegionalPrice struct {
	BaseModel
	ReferenceProductID int64   `gorm:"uniqueIndex:idx_regional_product_region;not null" json:"reference_product_id"`
	Region             string  `gorm:"size:10;uniqueIndex:idx_regional_product_region;not null" json:"region"` // US / BR / DE ...
	PriceUSD           float64 `gorm:"column:price_usd;type:decimal(10,2);not null" json:"price_usd"`
}

func (RegionalPrice) TableName() string {
	return "regional_prices"
}
