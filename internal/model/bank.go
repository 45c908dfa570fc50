package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank 银行
//
// 金库余额（vault_balance）只会因以下操作变化：
//  1. 转账手续费入账
//  2. 金库转出到账户
//  3. 通胀扣减
//  4. 利息发放
type Bank struct {
	ID                string           `gorm:"type:varchar(32);primaryKey" json:"id"`
	Code              string           `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Name              string           `gorm:"type:varchar(100);not null" json:"name"`
	ProviderID        string           `gorm:"type:varchar(32);index;not null" json:"provider_id"`
	VaultBalance      decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"vault_balance"`
	BaseFeePercentage decimal.Decimal  `gorm:"type:decimal(7,4);not null;default:0" json:"base_fee_percentage"`
	InterestRate      *decimal.Decimal `gorm:"type:decimal(7,4)" json:"interest_rate"` // 为空表示不发放利息
	MaintenanceMode   bool             `gorm:"not null;default:false" json:"maintenance_mode"`
	CreatedAt         time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Bank) TableName() string {
	return "bank"
}

// PaysInterest 银行是否配置了正的利率
func (b *Bank) PaysInterest() bool {
	return b.InterestRate != nil && b.InterestRate.IsPositive()
}
