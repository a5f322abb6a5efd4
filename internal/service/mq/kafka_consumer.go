package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tezos-gateway/pkg/logger"
)

// KafkaConsumer 实现 Consumer 接口
type KafkaConsumer struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{brokers: brokers, groupID: groupID}
}

func fromKafkaMessage(topic string, m kafka.Message) *Message {
	msg := &Message{
		ID:       fmt.Sprintf("%d-%d", m.Partition, m.Offset),
		Topic:    topic,
		Key:      string(m.Key),
		Payload:  m.Value,
		Metadata: make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Metadata[h.Key] = string(h.Value)
	}
	return msg
}

func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})
	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	logger.Info("Kafka consumer listening", zap.String("topic", topic), zap.String("group", c.groupID))

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Kafka fetch failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := handler(ctx, fromKafkaMessage(topic, m)); err != nil {
			// 不提交 Offset, 重新加入消费组后会再次投递
			logger.Error("Message handling failed", zap.String("topic", topic), zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			logger.Warn("Kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.readers = nil
	return firstErr
}
