package model

import (
	"time"
)

// BaseModel 公共字段
// 价格数据采用整表替换策略，依赖唯一索引，因此不使用软删除
type BaseModel struct {
	ID        int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
