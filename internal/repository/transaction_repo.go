package repository

import (
	"context"
	"errors"
	"time"

	"rispay/internal/model"

	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("交易不存在")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListByAccountIDs 按时间倒序分页查询涉及这些账户的流水（转出或转入）
func (r *TransactionRepository) ListByAccountIDs(ctx context.Context, accountIDs []string, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	if len(accountIDs) == 0 {
		return transactions, 0, nil
	}

	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("sender_account_id IN ? OR receiver_account_id IN ?", accountIDs, accountIDs)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).Count(&total).Error
	return total, err
}

// ListCompletedSince since 之后（含）涉及这些账户的已完成流水，按时间正序
func (r *TransactionRepository) ListCompletedSince(ctx context.Context, accountIDs []string, since time.Time) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	if len(accountIDs) == 0 {
		return transactions, nil
	}
	err := r.db.WithContext(ctx).
		Where("sender_account_id IN ? OR receiver_account_id IN ?", accountIDs, accountIDs).
		Where("status = ? AND created_at >= ?", model.TransactionStatusCompleted, since).
		Order("created_at ASC").
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}
