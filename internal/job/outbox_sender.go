package job

import (
	"context"
	"time"

	"rispay/internal/config"
	"rispay/internal/logger"
	"rispay/internal/metrics"
	"rispay/internal/model"
	"rispay/internal/repository"

	"gorm.io/gorm"
)

// Publisher 消息投递，生产环境是 Kafka producer
type Publisher interface {
	Send(topic, key, value string) error
}

// OutboxSender 把本地消息表中待发送的通知投递到 Kafka
// 投递失败只重试通知本身，从不重放资金变动
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     Publisher
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config, publisher Publisher) *OutboxSender {
	s := &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		stopCh:        make(chan struct{}),
		interval:      cfg.Jobs.OutboxInterval,
		batchSize:     cfg.Jobs.OutboxBatchSize,
		maxRetryCount: cfg.Jobs.MaxRetryCount,
	}
	if s.interval <= 0 {
		s.interval = 100 * time.Millisecond
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.maxRetryCount <= 0 {
		s.maxRetryCount = 5
	}
	return s
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Infof("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			logger.Infof("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Errorf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		metrics.RecordOutbox(model.OutboxStatusSent)
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			logger.Errorf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		}
		return true
	}

	logger.Warnf("[OutboxSender] 消息发送失败: id=%d, event=%s, err=%v", msg.ID, msg.EventType, err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		logger.Errorf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.maxRetryCount {
		metrics.RecordOutbox(model.OutboxStatusFailed)
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.Errorf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			logger.Warnf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
	return false
}
