package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/api/dto"
	"metal_price_tracker/internal/service"
)

// ReferenceController 基准产品 CRUD，修改后自动重新匹配
type ReferenceController struct {
	refs *service.ReferenceService
}

func NewReferenceController(refs *service.ReferenceService) *ReferenceController {
	return &ReferenceController{refs: refs}
}

func toReferenceInput(req *dto.ReferenceProductReq) service.ReferenceInput {
	return service.ReferenceInput{
		Name:               req.Name,
		CPU:                req.CPU,
		CPUCores:           req.CPUCores,
		RAMGB:              req.RAMGB,
		StorageDescription: req.StorageDescription,
		StorageTotalTB:     req.StorageTotalTB,
		NetworkGbps:        req.NetworkGbps,
		PriceUSD:           req.PriceUSD,
		Generation:         req.Generation,
	}
}

// List @Router /api/reference-products [get]
func (ctl *ReferenceController) List(c *gin.Context) {
	products, err := ctl.refs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, products)
}

// Get @Router /api/reference-products/{id} [get]
func (ctl *ReferenceController) Get(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	product, err := ctl.refs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, product)
}

// Create @Router /api/reference-products [post]
func (ctl *ReferenceController) Create(c *gin.Context) {
	var req dto.ReferenceProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	product, err := ctl.refs.Create(c.Request.Context(), toReferenceInput(&req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "success", "data": product})
}

// Update @Router /api/reference-products/{id} [put]
func (ctl *ReferenceController) Update(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req dto.ReferenceProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	product, err := ctl.refs.Update(c.Request.Context(), id, toReferenceInput(&req))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, product)
}

// Delete @Router /api/reference-products/{id} [delete]
func (ctl *ReferenceController) Delete(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	if err := ctl.refs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, nil)
}
