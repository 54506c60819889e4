package model

import "time"

// PriceHistory 显著价格变动记录，只追加不修改
type PriceHistory struct {
	ID                  int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CompetitorProductID *int64     `gorm:"index" json:"competitor_product_id,omitempty"`
	Competitor          Competitor `gorm:"size:32;index;not null" json:"competitor"`
	ProductName         string     `gorm:"size:255;not null" json:"product_name"`
	CityName            string     `gorm:"size:100;not null" json:"city_name"`
	OldPrice            float64    `gorm:"type:decimal(10,2);not null" json:"old_price"`
	NewPrice            float64    `gorm:"type:decimal(10,2);not null" json:"new_price"`
	ChangePercent       float64    `gorm:"not null" json:"change_percent"`
	RecordedAt          time.Time  `gorm:"index;not null" json:"recorded_at"`
}

func (PriceHistory) TableName() string {
	return "price_histories"
}
