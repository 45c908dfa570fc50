package mq

import (
	"fmt"

	"rispay/internal/config"
	"rispay/internal/logger"

	"github.com/IBM/sarama"
)

// Producer 同步 Kafka 生产者，供本地消息表投递使用
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducerConfig 生产者配置：等待所有副本确认，失败重试 3 次
func NewProducerConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	return kafkaConfig
}

// InitKafka 连接 Kafka 并创建生产者
func InitKafka(cfg *config.KafkaConfig) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	logger.Infof("[Kafka] 生产者创建成功: brokers=%v", cfg.Brokers)
	return NewProducer(producer), nil
}

func NewProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// Send 发送消息，key 决定分区，同一用户的事件保持顺序
func (p *Producer) Send(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
