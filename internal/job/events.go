package job

import (
	"encoding/json"
	"time"

	"rispay/internal/model"

	"github.com/shopspring/decimal"
)

func balanceChangedMessage(topic, userID, accountID string, balance decimal.Decimal, now time.Time) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(model.BalanceChangedEvent{
		UserID:    userID,
		AccountID: accountID,
		Balance:   balance,
		Timestamp: now,
	})
	if err != nil {
		return nil, err
	}
	return &model.OutboxMessage{
		MessageKey: userID,
		EventType:  model.EventBalanceChanged,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}, nil
}
