package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/api/dto"
	"metal_price_tracker/internal/service"
)

type PricingController struct {
	pricing *service.PricingService
}

func NewPricingController(pricing *service.PricingService) *PricingController {
	return &PricingController{pricing: pricing}
}

// Resolve 按国家解析基准产品价格，未知产品价格为 0
// @Router /api/pricing/resolve [get]
func (ctl *PricingController) Resolve(c *gin.Context) {
	var q dto.ResolvePriceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	res, err := ctl.pricing.ResolvePrice(c.Request.Context(), q.ReferenceProductID, q.Country)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, res)
}
