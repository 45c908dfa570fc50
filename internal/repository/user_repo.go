package repository

import (
	"context"
	"errors"

	"rispay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("用户不存在")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.User, error) {
	var user model.User
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetSettings 用户设置不存在时返回 nil, nil
func (r *UserRepository) GetSettings(ctx context.Context, tx *gorm.DB, userID string) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := r.conn(tx).WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// SetTransactionPin 写入交易 PIN 哈希
func (r *UserRepository) SetTransactionPin(ctx context.Context, userID, pinHash string) error {
	settings := &model.UserSettings{UserID: userID, TransactionPinHash: &pinHash}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"transaction_pin_hash", "updated_at"}),
		}).
		Create(settings).Error
}
