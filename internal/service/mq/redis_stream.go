package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tezos-gateway/pkg/logger"
)

const headerPrefix = "h:"

// RedisProducer 实现 Producer 接口
type RedisProducer struct {
	client *redis.Client
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// Publish 发送消息到 Redis Stream (XADD), headers are stored as h:<name> fields.
func (p *RedisProducer) Publish(ctx context.Context, msg *Message) error {
	values := map[string]interface{}{
		"payload": msg.Payload,
		"key":     msg.Key,
	}
	for k, v := range msg.Metadata {
		values[headerPrefix+k] = v
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: msg.Topic, Values: values}).Err(); err != nil {
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// Close is a no-op: the client is shared and closed by its owner.
func (p *RedisProducer) Close() error { return nil }

// RedisConsumer 实现 Consumer 接口 (consumer group)
type RedisConsumer struct {
	client *redis.Client
	group  string
	name   string
	block  time.Duration
}

func NewRedisConsumer(client *redis.Client, group, name string) *RedisConsumer {
	return &RedisConsumer{client: client, group: group, name: name, block: 2 * time.Second}
}

func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler Handler) error {
	// 从头开始, 组创建前写入的消息也会被消费
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	logger.Info("Redis consumer listening", zap.String("topic", topic), zap.String("group", c.group), zap.String("consumer", c.name))

	// 先处理本消费者未确认的消息, 再读新消息
	cursor := "0"
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, cursor},
			Count:    10,
			Block:    c.block,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Redis consumer read failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		delivered := 0
		for _, stream := range streams {
			for _, x := range stream.Messages {
				delivered++
				c.dispatch(ctx, topic, x, handler)
			}
		}
		if cursor == "0" && delivered == 0 {
			cursor = ">"
		}
	}
}

func (c *RedisConsumer) dispatch(ctx context.Context, topic string, x redis.XMessage, handler Handler) {
	payload, ok := x.Values["payload"].(string)
	if !ok {
		logger.Warn("Redis message without payload dropped", zap.String("id", x.ID))
		c.ack(ctx, topic, x.ID)
		return
	}

	msg := &Message{ID: x.ID, Topic: topic, Payload: []byte(payload), Metadata: map[string]string{}}
	for k, v := range x.Values {
		s, _ := v.(string)
		switch {
		case k == "key":
			msg.Key = s
		case strings.HasPrefix(k, headerPrefix):
			msg.Metadata[strings.TrimPrefix(k, headerPrefix)] = s
		}
	}

	if err := handler(ctx, msg); err != nil {
		logger.Error("Message handling failed", zap.String("topic", topic), zap.String("id", x.ID), zap.Error(err))
		return
	}
	c.ack(ctx, topic, x.ID)
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	if err := c.client.XAck(ctx, topic, c.group, id).Err(); err != nil {
		logger.Warn("Redis ack failed", zap.String("id", id), zap.Error(err))
	}
}

func (c *RedisConsumer) Close() error { return nil }
