package model

// PricePosition 价格位置分档
type PricePosition string

const (
	PositionCheaper     PricePosition = "cheaper"     // 基准更便宜
	PositionCompetitive PricePosition = "competitive" // 持平区间（含 ±10 边界）
	PositionExpensive   PricePosition = "expensive"   // 基准更贵
)

// PositionThreshold 价格位置阈值（百分比）
const PositionThreshold = 10.0

// PositionOf 按价差百分比分档
func PositionOf(diffPercent float64) PricePosition {
	switch {
	case diffPercent > PositionThreshold:
		return PositionCheaper
	case diffPercent < -PositionThreshold:
		return PositionExpensive
	default:
		return PositionCompetitive
	}
}

// Label 展示用文案
func (p PricePosition) Label() string {
	switch p {
	case PositionCheaper:
		return "Cheaper"
	case PositionExpensive:
		return "More Expensive"
	default:
		return "Competitive"
	}
}

// Comparison 基准 SKU 与竞品 SKU 的配对
// PriceDifferencePercent = (竞品价 - 基准价) / 基准价 * 100，正数表示基准更便宜
type Comparison struct {
	BaseModel
	ReferenceProductID        int64              `gorm:"index;not null" json:"reference_product_id"`
	ReferenceProduct          *ReferenceProduct  `gorm:"foreignKey:ReferenceProductID" json:"reference_product,omitempty"`
	CompetitorProductID       int64              `gorm:"index;not null" json:"competitor_product_id"`
	CompetitorProduct         *CompetitorProduct `gorm:"foreignKey:CompetitorProductID" json:"competitor_product,omitempty"`
	PriceDifferencePercent    float64            `gorm:"not null;index" json:"price_difference_percent"`
	RegionalReferencePriceUSD *float64           `gorm:"column:regional_reference_price_usd;type:decimal(10,2)" json:"regional_reference_price_usd,omitempty"`
	Notes                     string             `gorm:"size:512" json:"notes"`
}

func (Comparison) TableName() string {
	return "comparisons"
}

// Position 当前配对的价格位置
func (c *Comparison) Position() PricePosition {
	return PositionOf(c.PriceDifferencePercent)
}
