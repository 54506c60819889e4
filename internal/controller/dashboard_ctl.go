package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/api/dto"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/internal/service"
)

const defaultHistoryLimit = 100

type DashboardController struct {
	dashboard *service.DashboardService
}

func NewDashboardController(dashboard *service.DashboardService) *DashboardController {
	return &DashboardController{dashboard: dashboard}
}

// Stats 总览统计
// @Router /api/stats [get]
func (ctl *DashboardController) Stats(c *gin.Context) {
	stats, err := ctl.dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, stats)
}

// PriceHistory 价格变动记录，最新在前
// @Router /api/price-history [get]
func (ctl *DashboardController) PriceHistory(c *gin.Context) {
	var q dto.PriceHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	competitor, valid := parseCompetitor(c, q.Competitor)
	if !valid {
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultHistoryLimit
	}

	history, err := ctl.dashboard.PriceHistory(c.Request.Context(), repository.PriceHistoryFilter{
		Competitor: competitor,
		Limit:      q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, history)
}

// Cities 城市列表
// @Router /api/cities [get]
func (ctl *DashboardController) Cities(c *gin.Context) {
	cities, err := ctl.dashboard.Cities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, cities)
}
