package model

import "time"

// 运行状态
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// 触发来源
const (
	RunTriggerCron   = "cron"
	RunTriggerManual = "manual"
	RunTriggerCLI    = "cli"
)

// PipelineRun 每日更新流水线的一次执行记录
type PipelineRun struct {
	BaseModel
	RunID            string     `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Trigger          string     `gorm:"size:16;not null" json:"trigger"`
	Status           string     `gorm:"size:16;index;not null" json:"status"`
	RuleVersion      string     `gorm:"size:64" json:"rule_version"`
	StartedAt        time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	ProductsIngested int        `gorm:"default:0" json:"products_ingested"`
	PriceChanges     int        `gorm:"default:0" json:"price_changes"`
	Comparisons      int        `gorm:"default:0" json:"comparisons"`
	InStockSummary   string     `gorm:"type:text" json:"in_stock_summary"` // 例: "OVHCLOUD=12,TERASWITCH=30"
	Error            string     `gorm:"type:text" json:"error,omitempty"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// Models 需要自动迁移的模型
func Models() []interface{} {
	return []interface{}{
		&City{},
		&ReferenceProduct{},
		&RegionalPrice{},
		&CompetitorProduct{},
		&Comparison{},
		&PriceHistory{},
		&PipelineRun{},
	}
}
