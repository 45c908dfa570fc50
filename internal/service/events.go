package service

import (
	"context"
	"encoding/json"
	"time"

	"rispay/internal/config"
	"rispay/internal/model"
	"rispay/internal/repository"

	"gorm.io/gorm"
)

// eventWriter 把通知事件写入本地消息表
// 必须和资金变动使用同一个事务，事务回滚时事件一起消失
type eventWriter struct {
	topics     config.KafkaTopicConfig
	outboxRepo *repository.OutboxRepository
	msgs       []*model.OutboxMessage
	err        error
}

func newEventWriter(topics config.KafkaTopicConfig, outboxRepo *repository.OutboxRepository) *eventWriter {
	return &eventWriter{topics: topics, outboxRepo: outboxRepo}
}

func (w *eventWriter) add(userID, eventType, topic string, payload interface{}) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.err = err
		return
	}
	w.msgs = append(w.msgs, &model.OutboxMessage{
		MessageKey: userID,
		EventType:  eventType,
		Topic:      topic,
		Payload:    string(data),
		Status:     model.OutboxStatusPending,
	})
}

// BalanceChanged 账户余额变化，account 必须是变动后的最新数据
func (w *eventWriter) BalanceChanged(account *model.Account, now time.Time) {
	w.add(account.UserID, model.EventBalanceChanged, w.topics.BalanceChanged, model.BalanceChangedEvent{
		UserID:    account.UserID,
		AccountID: account.ID,
		Balance:   account.Balance,
		Timestamp: now,
	})
}

// TransactionCompleted 通知某一方交易已完成
func (w *eventWriter) TransactionCompleted(userID, accountID, direction string, trans *model.Transaction) {
	w.add(userID, model.EventTransactionCompleted, w.topics.TransactionCompleted, model.TransactionCompletedEvent{
		UserID:        userID,
		TransactionID: trans.ID,
		AccountID:     accountID,
		Amount:        trans.Amount,
		Direction:     direction,
		Memo:          trans.Memo,
		Timestamp:     trans.CreatedAt,
	})
}

// Flush 写入事务
func (w *eventWriter) Flush(ctx context.Context, tx *gorm.DB) error {
	if w.err != nil {
		return w.err
	}
	if len(w.msgs) == 0 {
		return nil
	}
	return w.outboxRepo.CreateBatch(ctx, tx, w.msgs)
}
