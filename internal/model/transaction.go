package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 目前只会持久化已完成的交易，不存在 PENDING / FAILED 状态
const (
	TransactionStatusCompleted = "COMPLETED"
)

// 交易备注默认值
const (
	MemoAdminCredit        = "Admin credit"
	MemoAdminDebit         = "Admin debit"
	MemoVaultTransfer      = "Vault transfer"
	MemoAdminVaultTransfer = "Admin vault transfer"
)

// ============================================================================
// 交易流水实体
// ============================================================================

// Transaction 一笔已完成的资金变动
//
// 【重要】流水设计原则：
// 1. 只追加，不修改，不删除，经济重置也不会清空流水
// 2. 与它记录的余额变动在同一个数据库事务中写入
// 3. bank_fee / system_tax 记录的是实际收取的金额
//
// 管理员加减款与金库转账的 sender 与 receiver 是同一个账户，不代表点对点转账。
type Transaction struct {
	ID                string          `gorm:"type:varchar(32);primaryKey" json:"id"`
	SenderAccountID   string          `gorm:"type:varchar(32);index;not null" json:"sender_account_id"`
	ReceiverAccountID string          `gorm:"type:varchar(32);index;not null" json:"receiver_account_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	BankFee           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"bank_fee"`
	SystemTax         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"system_tax"`
	Memo              *string         `gorm:"type:varchar(200)" json:"memo"`
	Status            string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
