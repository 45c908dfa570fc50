package repository

import (
	"context"

	"rispay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRunRepository struct {
	db *gorm.DB
}

func NewJobRunRepository(db *gorm.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// Claim 写入 (job, period, scope) 标记
// 返回 false 表示该周期已经执行过，调用方应放弃本次修改
func (r *JobRunRepository) Claim(ctx context.Context, tx *gorm.DB, job, period, scope string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	run := &model.JobRun{Job: job, Period: period, Scope: scope}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(run)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *JobRunRepository) ListByPeriod(ctx context.Context, job, period string) ([]*model.JobRun, error) {
	var runs []*model.JobRun
	err := r.db.WithContext(ctx).
		Where("job = ? AND period = ?", job, period).
		Order("id ASC").
		Find(&runs).Error
	return runs, err
}
