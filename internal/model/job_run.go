package model

import (
	"time"
)

// JobPeriodLayout 月度任务的周期格式，按 UTC 计
const JobPeriodLayout = "2006-01"

// JobRun 月度任务在某个周期内已完成的标记
// 利息按银行记一行，通胀整体记一行 (Scope = JobScopeAll)
// 与它标记的资金变动在同一个事务中写入，回滚时一并消失
type JobRun struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Job       string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_job_period_scope" json:"job"`
	Period    string    `gorm:"type:varchar(7);not null;uniqueIndex:uk_job_period_scope" json:"period"`
	Scope     string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_job_period_scope" json:"scope"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const JobScopeAll = "*"

func (JobRun) TableName() string {
	return "job_run"
}
