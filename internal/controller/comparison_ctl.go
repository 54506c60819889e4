package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/api/dto"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ComparisonController struct {
	dashboard *service.DashboardService
	matcher   service.Regenerator
}

func NewComparisonController(dashboard *service.DashboardService, matcher service.Regenerator) *ComparisonController {
	return &ComparisonController{dashboard: dashboard, matcher: matcher}
}

// bindFilter 解析列表与导出共用的筛选条件
func (ctl *ComparisonController) bindFilter(c *gin.Context) (repository.ComparisonFilter, bool) {
	var q dto.ComparisonQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return repository.ComparisonFilter{}, false
	}
	competitor, valid := parseCompetitor(c, q.Competitor)
	if !valid {
		return repository.ComparisonFilter{}, false
	}
	return repository.ComparisonFilter{
		Competitor:  competitor,
		CityID:      q.CityID,
		ReferenceID: q.ReferenceID,
		Position:    model.PricePosition(q.Position),
	}, true
}

// List 比价列表，按价差降序
// @Router /api/comparisons [get]
func (ctl *ComparisonController) List(c *gin.Context) {
	filter, valid := ctl.bindFilter(c)
	if !valid {
		return
	}
	views, err := ctl.dashboard.ListComparisons(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, views)
}

// Create 手动创建比价
// @Router /api/comparisons [post]
func (ctl *ComparisonController) Create(c *gin.Context) {
	var req dto.CreateComparisonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	view, err := ctl.dashboard.CreateComparison(c.Request.Context(), req.ReferenceProductID, req.CompetitorProductID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "success", "data": view})
}

// Delete 删除比价
// @Router /api/comparisons/{id} [delete]
func (ctl *ComparisonController) Delete(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	if err := ctl.dashboard.DeleteComparison(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, nil)
}

// Recalculate 全量重新匹配
// @Router /api/comparisons/recalculate [post]
func (ctl *ComparisonController) Recalculate(c *gin.Context) {
	n, err := ctl.matcher.Regenerate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, dto.RecalculateResp{Comparisons: n})
}

// Export 导出 XLSX
// @Router /api/comparisons/export [get]
func (ctl *ComparisonController) Export(c *gin.Context) {
	filter, valid := ctl.bindFilter(c)
	if !valid {
		return
	}
	var buf bytes.Buffer
	if err := ctl.dashboard.ExportComparisons(c.Request.Context(), filter, &buf); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("comparisons-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
