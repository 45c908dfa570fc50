package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 通知事件类型，由推送层转发给对应用户
const (
	EventBalanceChanged       = "balance_changed"
	EventTransactionCompleted = "transaction_completed"
)

// 交易方向
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// OutboxMessage 本地消息表
// 与资金变动在同一个事务中写入，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// BalanceChangedEvent 账户余额变化
type BalanceChangedEvent struct {
	UserID    string          `json:"user_id"`
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransactionCompletedEvent 交易完成通知，转出方与转入方各一条
type TransactionCompletedEvent struct {
	UserID        string          `json:"user_id"`
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	Memo          *string         `json:"memo,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
