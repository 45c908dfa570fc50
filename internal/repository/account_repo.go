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
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return r.conn(tx).WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 在事务内加行锁读取
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// LockInOrder 按 ID 升序锁定多个账户，所有并发事务以相同顺序加锁，避免死锁
func (r *AccountRepository) LockInOrder(ctx context.Context, tx *gorm.DB, ids ...string) (map[string]*model.Account, error) {
	var accounts []*model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	locked := make(map[string]*model.Account, len(accounts))
	for _, a := range accounts {
		locked[a.ID] = a
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, ErrAccountNotFound
		}
	}
	return locked, nil
}

// GetPrimaryActivatedByUsername 按用户名查找该用户已激活的主账户
func (r *AccountRepository) GetPrimaryActivatedByUsername(ctx context.Context, tx *gorm.DB, username string) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).
		Joins("JOIN `user` ON `user`.id = account.user_id").
		Where("`user`.username = ? AND account.is_primary = ? AND account.activated_at IS NOT NULL", username, true).
		Order("account.created_at ASC").
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// ListActivatedByBankForUpdate 锁定某家银行所有已激活账户
func (r *AccountRepository) ListActivatedByBankForUpdate(ctx context.Context, tx *gorm.DB, bankID string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("bank_id = ? AND activated_at IS NOT NULL", bankID).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) CountByBank(ctx context.Context, bankID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Where("bank_id = ?", bankID).Count(&count).Error
	return count, err
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Count(&count).Error
	return count, err
}

// SumBalance 所有账户余额之和
func (r *AccountRepository) SumBalance(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.Account{}).
		Select("COALESCE(SUM(balance), 0)").
		Row().Scan(&sum)
	return sum, err
}

// Deduct 扣款
//
// 【关键点】余额检查和扣减在同一条 SQL 中完成：
// UPDATE account SET balance = balance - ? WHERE id = ? AND balance >= ?
// 两笔并发扣款不可能都通过检查。
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal) error {
	return r.Adjust(ctx, tx, id, amount.Neg())
}

func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Adjust 按 delta 调整余额，结果为负时拒绝
func (r *AccountRepository) Adjust(ctx context.Context, tx *gorm.DB, id string, delta decimal.Decimal) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND balance + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", delta),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 区分账户不存在和余额不足，必须在同一个事务里查
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrBalanceNotEnough
	}
	return nil
}

// ResetAll 所有账户余额清零
func (r *AccountRepository) ResetAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"balance": decimal.Zero,
			"version": gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

// SetPrimary 把账户设为主账户，同一 (user, bank) 下的其它账户取消主账户标记
func (r *AccountRepository) SetPrimary(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	db := r.conn(tx).WithContext(ctx)
	err := db.Model(&model.Account{}).
		Where("user_id = ? AND bank_id = ? AND id <> ?", account.UserID, account.BankID, account.ID).
		Update("is_primary", false).Error
	if err != nil {
		return err
	}
	return db.Model(&model.Account{}).
		Where("id = ?", account.ID).
		Update("is_primary", true).Error
}

func (r *AccountRepository) UpdateNickname(ctx context.Context, id string, nickname *string) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("nickname", nickname).Error
}
