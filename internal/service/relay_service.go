package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tezos-gateway/internal/service/mq"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/monitor"
)

// RelayService 负责将本地消息表的消息搬运到 MQ
type RelayService struct {
	store     store.JobStore
	producer  mq.Producer
	interval  time.Duration
	batchSize int
}

func NewRelayService(jobs store.JobStore, producer mq.Producer) *RelayService {
	return &RelayService{
		store:     jobs,
		producer:  producer,
		interval:  500 * time.Millisecond,
		batchSize: 50,
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("Outbox relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			s.RelayPending(ctx)
		}
	}
}

// RelayPending publishes one batch of pending messages and returns how many
// were marked sent. A message is marked only after the broker took it, so
// delivery is at least once.
func (s *RelayService) RelayPending(ctx context.Context) int {
	messages, err := s.store.PendingOutbox(ctx, s.batchSize)
	if err != nil {
		logger.Error("Outbox query failed", zap.Error(err))
		return 0
	}

	sent := 0
	for _, m := range messages {
		err := s.producer.Publish(ctx, &mq.Message{Topic: m.Topic, Key: m.Key, Payload: m.Payload})
		if err != nil {
			monitor.OutboxRelayedTotal.WithLabelValues(m.Topic, "error").Inc()
			logger.Warn("Outbox publish failed", zap.Uint64("outbox_id", m.ID), zap.Error(err))
			continue
		}
		monitor.OutboxRelayedTotal.WithLabelValues(m.Topic, "ok").Inc()

		// 更新失败时下次会重发, consumer 需要幂等
		if err := s.store.MarkOutboxSent(ctx, m.ID); err != nil {
			logger.Error("Outbox status update failed", zap.Uint64("outbox_id", m.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		logger.Debug("Outbox relayed", zap.Int("sent", sent))
	}
	return sent
}
