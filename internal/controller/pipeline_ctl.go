package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/api/dto"
	"metal_price_tracker/internal/service"
	"metal_price_tracker/internal/task"
)

// Trigger 手动触发与状态查询，由 task.TaskManager 实现
type Trigger interface {
	TriggerRun() error
	Status() map[string]interface{}
}

type PipelineController struct {
	trigger   Trigger
	dashboard *service.DashboardService
}

func NewPipelineController(trigger Trigger, dashboard *service.DashboardService) *PipelineController {
	return &PipelineController{trigger: trigger, dashboard: dashboard}
}

// Run 后台触发一次完整更新
// @Router /api/pipeline/run [post]
func (ctl *PipelineController) Run(c *gin.Context) {
	err := ctl.trigger.TriggerRun()
	switch {
	case errors.Is(err, task.ErrRunInProgress):
		fail(c, http.StatusConflict, "已有更新正在运行")
		return
	case errors.Is(err, task.ErrTaskDisabled):
		fail(c, http.StatusServiceUnavailable, "更新任务未启用")
		return
	case err != nil:
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": 0, "message": "已触发更新", "data": ctl.trigger.Status()})
}

// Runs 最近运行记录
// @Router /api/pipeline/runs [get]
func (ctl *PipelineController) Runs(c *gin.Context) {
	var q dto.RunListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	runs, err := ctl.dashboard.Runs(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, runs)
}

// Status 任务状态
// @Router /api/pipeline/status [get]
func (ctl *PipelineController) Status(c *gin.Context) {
	ok(c, ctl.trigger.Status())
}
