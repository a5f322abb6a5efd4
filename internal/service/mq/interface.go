package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID       string            // 消息ID (例如 Redis Stream ID)
	Topic    string            // 主题 (例如 "tezos_gateway_send_transactions")
	Key      string            // 分区键 (例如 JobID), 同样用于 Kafka Partition
	Payload  []byte            // 消息体 (JSON)
	Metadata map[string]string // 路由头 (entrypoint, contractAddress, callerId)
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息到 msg.Topic
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

// Handler 返回 error 时消息不被确认, 会被重新投递
type Handler func(ctx context.Context, msg *Message) error

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 阻塞消费 topic 直到 ctx 结束
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
