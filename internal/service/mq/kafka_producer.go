package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer 实现 Producer 接口, topic 取自每条消息
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{}, // 按 Key 哈希, 同一 Job 的消息有序
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer}
}

func toKafkaMessage(msg *Message) kafka.Message {
	km := kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
	}
	for k, v := range msg.Metadata {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return km
}

func (p *KafkaProducer) Publish(ctx context.Context, msg *Message) error {
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
