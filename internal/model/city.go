package model

// City 城市/机房位置
// Code 按供应商命名空间区分（如 "ovh-fra"），同一物理城市在不同供应商下可能存在多行
type City struct {
	BaseModel
	Code    string `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Name    string `gorm:"size:100;index:idx_city_name_country;not null" json:"name"`
	Country string `gorm:"size:100;index:idx_city_name_country;not null" json:"country"`
}

func (City) TableName() string {
	return "cities"
}
