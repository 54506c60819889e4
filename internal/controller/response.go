package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/service"
)

// ==================== 统一响应 ====================

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message})
}

// respondError 按业务错误映射 HTTP 状态码
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case service.IsValidation(err):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "服务器内部错误: "+err.Error())
	}
}

// parseID 解析路径参数 :id
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "无效的 ID")
		return 0, false
	}
	return id, true
}

// parseCompetitor 空字符串表示不过滤
func parseCompetitor(c *gin.Context, raw string) (model.Competitor, bool) {
	if raw == "" {
		return "", true
	}
	competitor, err := model.ParseCompetitor(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return competitor, true
}
