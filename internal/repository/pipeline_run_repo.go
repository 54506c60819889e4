package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"metal_price_tracker/internal/model"
)

// PipelineRunRepository 流水线运行记录仓储接口
type PipelineRunRepository interface {
	Create(ctx context.Context, run *model.PipelineRun) error
	// Finish 更新结束状态与统计
	Finish(ctx context.Context, runID string, fields map[string]interface{}) error
	GetByRunID(ctx context.Context, runID string) (*model.PipelineRun, error)
	List(ctx context.Context, limit int) ([]model.PipelineRun, error)
	LastSucceeded(ctx context.Context) (*model.PipelineRun, error)
}

type pipelineRunRepo struct {
	db *gorm.DB
}

// NewPipelineRunRepository 创建运行记录仓储
func NewPipelineRunRepository(db *gorm.DB) PipelineRunRepository {
	return &pipelineRunRepo{db: db}
}

func (r *pipelineRunRepo) Create(ctx context.Context, run *model.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *pipelineRunRepo) Finish(ctx context.Context, runID string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.PipelineRun{}).
		Where("run_id = ?", runID).
		Updates(fields).Error
}

func (r *pipelineRunRepo) GetByRunID(ctx context.Context, runID string) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *pipelineRunRepo) List(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []model.PipelineRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *pipelineRunRepo) LastSucceeded(ctx context.Context) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := r.db.WithContext(ctx).
		Where("status = ?", model.RunStatusSucceeded).
		Order("started_at DESC, id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
