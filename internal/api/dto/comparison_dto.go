package dto

// ==================== 请求 DTO ====================

// ComparisonQuery 对比列表筛选
type ComparisonQuery struct {
	Competitor  string `form:"competitor"`
	CityID      int64  `form:"cityId" binding:"omitempty,gt=0"`
	ReferenceID int64  `form:"referenceProductId" binding:"omitempty,gt=0"`
	Position    string `form:"position" binding:"omitempty,oneof=cheaper competitive expensive"`
}

// CreateComparisonReq 手动创建对比
type CreateComparisonReq struct {
	ReferenceProductID  int64  `json:"reference_product_id" binding:"required,gt=0"`
	CompetitorProductID int64  `json:"competitor_product_id" binding:"required,gt=0"`
	Notes               string `json:"notes" binding:"max=500"`
}

// PriceHistoryQuery 价格历史筛选
type PriceHistoryQuery struct {
	Competitor string `form:"competitor"`
	Limit      int    `form:"limit" binding:"omitempty,gt=0,lte=1000"`
}

// ResolvePriceQuery 区域价格解析
type ResolvePriceQuery struct {
	ReferenceProductID int64  `form:"referenceProductId" binding:"required,gt=0"`
	Country            string `form:"country" binding:"required"`
}

// RunListQuery 运行记录
type RunListQuery struct {
	Limit int `form:"limit" binding:"omitempty,gt=0,lte=200"`
}

// ==================== 响应 DTO ====================

// RecalculateResp 重新匹配结果
type RecalculateResp struct {
	Comparisons int `json:"comparisons"`
}
