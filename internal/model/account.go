package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 用户在某家银行开设的账户
//
// 未激活（ActivatedAt 为空）的账户不能参与转账，既不能转出也不能转入。
// 同一 (user, bank) 下最多只有一个主账户。
type Account struct {
	ID                string          `gorm:"type:varchar(32);primaryKey" json:"id"`
	UserID            string          `gorm:"type:varchar(32);index:idx_account_user_bank;not null" json:"user_id"`
	BankID            string          `gorm:"type:varchar(32);index:idx_account_user_bank;index;not null" json:"bank_id"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	IsPrimary         bool            `gorm:"not null;default:false" json:"is_primary"`
	Nickname          *string         `gorm:"type:varchar(50)" json:"nickname"`
	ActivatedAt       *time.Time      `json:"activated_at"`
	ActivationKeyHash *string         `gorm:"type:varchar(128)" json:"-"`
	Version           int             `gorm:"not null;default:0" json:"version"` // 每次余额变动递增
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) IsActivated() bool {
	return a.ActivatedAt != nil
}
