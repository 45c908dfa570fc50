package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// VaultChange 单个银行金库在一次通胀中的变化
type VaultChange struct {
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
}

// InflationLog 通胀执行记录，只追加
// 与它描述的金库扣减在同一个事务中写入
type InflationLog struct {
	ID           string          `gorm:"type:varchar(32);primaryKey" json:"id"`
	Rate         decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"rate"`
	VaultChanges string          `gorm:"type:text;not null" json:"vault_changes"` // JSON: bankID -> VaultChange
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (InflationLog) TableName() string {
	return "inflation_log"
}

// Changes 解析 VaultChanges
func (l *InflationLog) Changes() (map[string]VaultChange, error) {
	changes := make(map[string]VaultChange)
	if l.VaultChanges == "" {
		return changes, nil
	}
	if err := json.Unmarshal([]byte(l.VaultChanges), &changes); err != nil {
		return nil, err
	}
	return changes, nil
}
