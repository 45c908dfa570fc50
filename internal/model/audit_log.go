package model

import (
	"time"
)

// 审计动作类型
const (
	AuditVaultTransfer   = "VAULT_TRANSFER"
	AuditCreditDebit     = "CREDIT_DEBIT"
	AuditEconomyReset    = "ECONOMY_RESET"
	AuditBankCreated     = "BANK_CREATED"
	AuditSettingsUpdated = "SETTINGS_UPDATED"
)

// AuditLog 管理员操作审计记录
type AuditLog struct {
	ID         string    `gorm:"type:varchar(32);primaryKey" json:"id"`
	AdminID    string    `gorm:"type:varchar(32);index;not null" json:"admin_id"`
	ActionType string    `gorm:"type:varchar(32);index;not null" json:"action_type"`
	Details    string    `gorm:"type:text;not null" json:"details"` // JSON
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
