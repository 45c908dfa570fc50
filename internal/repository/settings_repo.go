package repository

import (
	"context"
	"errors"

	"rispay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository 全局设置（单行，id = default）
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *SettingsRepository) get(ctx context.Context, tx *gorm.DB) (*model.SystemSettings, error) {
	var settings model.SystemSettings
	err := r.conn(tx).WithContext(ctx).Where("id = ?", model.SettingsID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// GetOrCreate 读取全局设置，不存在时写入默认值
// 并发首次读取时依赖主键冲突 DO NOTHING，只会有一行
func (r *SettingsRepository) GetOrCreate(ctx context.Context, tx *gorm.DB) (*model.SystemSettings, error) {
	settings, err := r.get(ctx, tx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(model.DefaultSystemSettings()).Error
	if err != nil {
		return nil, err
	}

	return r.get(ctx, tx)
}

// AddAdminWallet 管理员钱包原子累加
func (r *SettingsRepository) AddAdminWallet(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) error {
	if _, err := r.GetOrCreate(ctx, tx); err != nil {
		return err
	}
	return r.conn(tx).WithContext(ctx).
		Model(&model.SystemSettings{}).
		Where("id = ?", model.SettingsID).
		Updates(map[string]interface{}{
			"admin_wallet_balance": gorm.Expr("admin_wallet_balance + ?", amount),
			"version":              gorm.Expr("version + 1"),
		}).Error
}

// ResetAdminWallet 管理员钱包清零
func (r *SettingsRepository) ResetAdminWallet(ctx context.Context, tx *gorm.DB) error {
	if _, err := r.GetOrCreate(ctx, tx); err != nil {
		return err
	}
	return r.conn(tx).WithContext(ctx).
		Model(&model.SystemSettings{}).
		Where("id = ?", model.SettingsID).
		Updates(map[string]interface{}{
			"admin_wallet_balance": decimal.Zero,
			"version":              gorm.Expr("version + 1"),
		}).Error
}

// Update 部分更新政策字段，版本号递增
func (r *SettingsRepository) Update(ctx context.Context, tx *gorm.DB, updates map[string]interface{}) (*model.SystemSettings, error) {
	if _, err := r.GetOrCreate(ctx, tx); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		fields := make(map[string]interface{}, len(updates)+1)
		for k, v := range updates {
			fields[k] = v
		}
		fields["version"] = gorm.Expr("version + 1")

		err := r.conn(tx).WithContext(ctx).
			Model(&model.SystemSettings{}).
			Where("id = ?", model.SettingsID).
			Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}
	return r.get(ctx, tx)
}
