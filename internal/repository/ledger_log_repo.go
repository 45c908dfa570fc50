package repository

import (
	"context"

	"rispay/internal/model"

	"gorm.io/gorm"
)

// InflationLogRepository 通胀记录，只追加
type InflationLogRepository struct {
	db *gorm.DB
}

func NewInflationLogRepository(db *gorm.DB) *InflationLogRepository {
	return &InflationLogRepository{db: db}
}

func (r *InflationLogRepository) Create(ctx context.Context, tx *gorm.DB, l *model.InflationLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(l).Error
}

func (r *InflationLogRepository) ListRecent(ctx context.Context, limit int) ([]*model.InflationLog, error) {
	var logs []*model.InflationLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// AuditLogRepository 管理员审计记录，只追加
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, tx *gorm.DB, l *model.AuditLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(l).Error
}

func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	var logs []*model.AuditLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *AuditLogRepository) ListByAction(ctx context.Context, actionType string) ([]*model.AuditLog, error) {
	var logs []*model.AuditLog
	err := r.db.WithContext(ctx).
		Where("action_type = ?", actionType).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
