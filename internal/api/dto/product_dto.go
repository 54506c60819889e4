package dto

// ==================== 基准产品 ====================

// ReferenceProductReq 创建 / 更新基准产品，更新时只修改非空字段
type ReferenceProductReq struct {
	Name               *string  `json:"name" binding:"omitempty,min=1,max=128"`
	CPU                *string  `json:"cpu" binding:"omitempty,max=128"`
	CPUCores           *int     `json:"cpu_cores" binding:"omitempty,gt=0"`
	RAMGB              *int     `json:"ram_gb" binding:"omitempty,gt=0"`
	StorageDescription *string  `json:"storage_description" binding:"omitempty,max=255"`
	StorageTotalTB     *float64 `json:"storage_total_tb" binding:"omitempty,gte=0"`
	NetworkGbps        *int     `json:"network_gbps" binding:"omitempty,gte=0"`
	PriceUSD           *float64 `json:"price_usd" binding:"omitempty,gte=0"`
	Generation         *int     `json:"generation" binding:"omitempty,gte=0"`
}

// ==================== 竞品产品 ====================

// CompetitorProductReq 创建 / 更新竞品产品
type CompetitorProductReq struct {
	Competitor         *string  `json:"competitor"`
	Name               *string  `json:"name" binding:"omitempty,min=1,max=255"`
	CPU                *string  `json:"cpu" binding:"omitempty,max=255"`
	CPUCores           *int     `json:"cpu_cores" binding:"omitempty,gt=0"`
	RAMGB              *int     `json:"ram_gb" binding:"omitempty,gt=0"`
	StorageDescription *string  `json:"storage_description" binding:"omitempty,max=255"`
	StorageTotalTB     *float64 `json:"storage_total_tb" binding:"omitempty,gte=0"`
	NetworkGbps        *int     `json:"network_gbps" binding:"omitempty,gte=0"`
	PriceUSD           *float64 `json:"price_usd" binding:"omitempty,gt=0"`
	CityID             *int64   `json:"city_id" binding:"omitempty,gt=0"`
	SourceURL          *string  `json:"source_url" binding:"omitempty,url"`
	InventoryURL       *string  `json:"inventory_url" binding:"omitempty,url"`
	InStock            *bool    `json:"in_stock"`
	Quantity           *int     `json:"quantity" binding:"omitempty,gte=0"`
}

// CompetitorQuery 竞品列表筛选
type CompetitorQuery struct {
	Competitor string `form:"competitor"`
	CityID     int64  `form:"cityId" binding:"omitempty,gt=0"`
	InStock    *bool  `form:"inStock"`
	Keyword    string `form:"keyword"`
	Page       int    `form:"page" binding:"omitempty,gt=0"`
	PageSize   int    `form:"page_size" binding:"omitempty,gt=0,lte=500"`
}

// InventoryReq 库存更新
type InventoryReq struct {
	InStock *bool `json:"in_stock" binding:"required"`
}

// ListResp 分页列表
type ListResp struct {
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
