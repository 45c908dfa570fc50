package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettingsID 全局设置只有一行
const SettingsID = "default"

// SystemSettings 全局经济政策
//
// admin_wallet_balance 是全局热点：每一笔带税转账都会累加它，
// 所以只能用 UPDATE ... SET x = x + ? 的方式原子累加，不能在应用层读改写。
type SystemSettings struct {
	ID                  string          `gorm:"type:varchar(32);primaryKey" json:"id"`
	MaxBankFeeCap       decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"max_bank_fee_cap"`
	GlobalTaxPercentage decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"global_tax_percentage"`
	TaxEnabled          bool            `gorm:"not null" json:"tax_enabled"`
	InflationRate       decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"inflation_rate"`
	InflationEnabled    bool            `gorm:"not null" json:"inflation_enabled"`
	AdminWalletBalance  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"admin_wallet_balance"`
	VaultTransferFee    decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"vault_transfer_fee"`
	Version             int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSettings) TableName() string {
	return "system_settings"
}

// DefaultSystemSettings 首次读取时写入的默认值
func DefaultSystemSettings() *SystemSettings {
	return &SystemSettings{
		ID:                  SettingsID,
		MaxBankFeeCap:       decimal.NewFromInt(5),
		GlobalTaxPercentage: decimal.NewFromInt(1),
		TaxEnabled:          true,
		InflationRate:       decimal.Zero,
		InflationEnabled:    false,
		AdminWalletBalance:  decimal.Zero,
		VaultTransferFee:    decimal.RequireFromString("0.5"),
	}
}
