package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/api/dto"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/internal/service"
)

type CompetitorController struct {
	comps *service.CompetitorService
}

func NewCompetitorController(comps *service.CompetitorService) *CompetitorController {
	return &CompetitorController{comps: comps}
}

// toCompetitorInput 供应商名称在此处规范化
func toCompetitorInput(c *gin.Context, req *dto.CompetitorProductReq) (service.CompetitorInput, bool) {
	in := service.CompetitorInput{
		Name:               req.Name,
		CPU:                req.CPU,
		CPUCores:           req.CPUCores,
		RAMGB:              req.RAMGB,
		StorageDescription: req.StorageDescription,
		StorageTotalTB:     req.StorageTotalTB,
		NetworkGbps:        req.NetworkGbps,
		PriceUSD:           req.PriceUSD,
		CityID:             req.CityID,
		SourceURL:          req.SourceURL,
		InventoryURL:       req.InventoryURL,
		InStock:            req.InStock,
		Quantity:           req.Quantity,
	}
	if req.Competitor != nil {
		competitor, err := model.ParseCompetitor(*req.Competitor)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return in, false
		}
		in.Competitor = &competitor
	}
	return in, true
}

// List 竞品分页列表
// @Router /api/competitors [get]
func (ctl *CompetitorController) List(c *gin.Context) {
	var q dto.CompetitorQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	competitor, valid := parseCompetitor(c, q.Competitor)
	if !valid {
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 50
	}

	products, total, err := ctl.comps.List(c.Request.Context(), repository.CompetitorFilter{
		Competitor: competitor,
		CityID:     q.CityID,
		InStock:    q.InStock,
		Keyword:    q.Keyword,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResp{
		Code:     0,
		Message:  "success",
		Data:     products,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
}

// Get @Router /api/competitors/{id} [get]
func (ctl *CompetitorController) Get(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	product, err := ctl.comps.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, product)
}

// Create @Router /api/competitors [post]
func (ctl *CompetitorController) Create(c *gin.Context) {
	var req dto.CompetitorProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	in, valid := toCompetitorInput(c, &req)
	if !valid {
		return
	}
	product, err := ctl.comps.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "success", "data": product})
}

// Update @Router /api/competitors/{id} [put]
func (ctl *CompetitorController) Update(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req dto.CompetitorProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	in, valid := toCompetitorInput(c, &req)
	if !valid {
		return
	}
	product, err := ctl.comps.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, product)
}

// UpdateInventory 更新库存状态
// @Router /api/competitors/{id}/inventory [put]
func (ctl *CompetitorController) UpdateInventory(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req dto.InventoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	product, err := ctl.comps.UpdateInventory(c.Request.Context(), id, *req.InStock)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, product)
}

// Delete @Router /api/competitors/{id} [delete]
func (ctl *CompetitorController) Delete(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	if err := ctl.comps.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, nil)
}
