package repository

import (
	"context"
	"errors"

	"rispay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBankNotFound      = errors.New("银行不存在")
	ErrVaultNotEnough    = errors.New("金库余额不足")
	ErrBankCodeDuplicate = errors.New("银行代码已存在")
)

type BankRepository struct {
	db *gorm.DB
}

func NewBankRepository(db *gorm.DB) *BankRepository {
	return &BankRepository{db: db}
}

func (r *BankRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Create 银行代码唯一，并发创建同一代码时只有一个成功
func (r *BankRepository) Create(ctx context.Context, tx *gorm.DB, bank *model.Bank) error {
	err := r.conn(tx).WithContext(ctx).Create(bank).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrBankCodeDuplicate
	}
	return err
}

func (r *BankRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Bank, error) {
	var bank model.Bank
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&bank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankNotFound
		}
		return nil, err
	}
	return &bank, nil
}

func (r *BankRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Bank, error) {
	var bank model.Bank
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&bank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankNotFound
		}
		return nil, err
	}
	return &bank, nil
}

// ExistsByCode 银行代码是否已被占用
func (r *BankRepository) ExistsByCode(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).Model(&model.Bank{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *BankRepository) ListAll(ctx context.Context) ([]*model.Bank, error) {
	var banks []*model.Bank
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&banks).Error
	return banks, err
}

func (r *BankRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Bank{}).Count(&count).Error
	return count, err
}

// SumVault 所有银行金库之和
func (r *BankRepository) SumVault(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.Bank{}).
		Select("COALESCE(SUM(vault_balance), 0)").
		Row().Scan(&sum)
	return sum, err
}

// ListAllForUpdate 锁定全部银行，通胀任务使用
func (r *BankRepository) ListAllForUpdate(ctx context.Context, tx *gorm.DB) ([]*model.Bank, error) {
	var banks []*model.Bank
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id ASC").
		Find(&banks).Error
	return banks, err
}

// ListPayingInterest 配置了利率的银行，利率是否为正由调用方判断
func (r *BankRepository) ListPayingInterest(ctx context.Context) ([]*model.Bank, error) {
	var banks []*model.Bank
	err := r.db.WithContext(ctx).
		Where("interest_rate IS NOT NULL").
		Order("id ASC").
		Find(&banks).Error
	return banks, err
}

func (r *BankRepository) ListByProvider(ctx context.Context, providerID string) ([]*model.Bank, error) {
	var banks []*model.Bank
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at DESC").
		Find(&banks).Error
	return banks, err
}

// IncreaseVault 金库入账（手续费）
func (r *BankRepository) IncreaseVault(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Bank{}).
		Where("id = ?", id).
		UpdateColumn("vault_balance", gorm.Expr("vault_balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBankNotFound
	}
	return nil
}

// DeductVault 金库出账，余额不足时不做任何修改
func (r *BankRepository) DeductVault(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Bank{}).
		Where("id = ? AND vault_balance >= ?", id, amount).
		UpdateColumn("vault_balance", gorm.Expr("vault_balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrVaultNotEnough
	}
	return nil
}

// SetVault 直接写入金库余额，只用于通胀（调用方已持有行锁）
func (r *BankRepository) SetVault(ctx context.Context, tx *gorm.DB, id string, balance decimal.Decimal) error {
	return tx.WithContext(ctx).
		Model(&model.Bank{}).
		Where("id = ?", id).
		UpdateColumn("vault_balance", balance).Error
}

// ResetAllVaults 所有金库清零
func (r *BankRepository) ResetAllVaults(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Bank{}).
		Where("1 = 1").
		UpdateColumn("vault_balance", decimal.Zero)
	return result.RowsAffected, result.Error
}

// UpdateSettings 更新银行的费率、利率、维护状态等字段
func (r *BankRepository) UpdateSettings(ctx context.Context, id string, updates map[string]interface{}) (*model.Bank, error) {
	err := r.db.WithContext(ctx).
		Model(&model.Bank{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, nil, id)
}
