package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tezos-gateway/internal/service/mq"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/utils/lock"
)

// Dispatcher is the SubmissionDispatcher: it consumes the send and inject
// queues and hands each message to the JobService under a per-job lock.
type Dispatcher struct {
	consumer mq.Consumer
	jobs     *JobService
	locker   lock.DistributedLock
	queues   config.QueueConfig
	lockTTL  time.Duration
}

func NewDispatcher(consumer mq.Consumer, jobs *JobService, locker lock.DistributedLock, queues config.QueueConfig) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		jobs:     jobs,
		locker:   locker,
		queues:   queues,
		lockTTL:  2 * time.Minute,
	}
}

// Run blocks until ctx ends or a subscription fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening for send jobs", zap.String("queue", d.queues.Send))
		return d.consumer.Subscribe(gctx, d.queues.Send, d.guard(d.jobs.HandleSend))
	})
	g.Go(func() error {
		logger.Info("Listening for inject jobs", zap.String("queue", d.queues.Inject))
		return d.consumer.Subscribe(gctx, d.queues.Inject, d.guard(d.jobs.HandleInject))
	})
	return g.Wait()
}

// guard serializes work on one job id across workers. A message whose job
// is held elsewhere is acknowledged; the holder owns the transition.
func (d *Dispatcher) guard(next mq.Handler) mq.Handler {
	return func(ctx context.Context, msg *mq.Message) error {
		if d.locker == nil {
			return next(ctx, msg)
		}
		var ref struct {
			JobID uint64 `json:"jobId"`
		}
		if err := json.Unmarshal(msg.Payload, &ref); err != nil || ref.JobID == 0 {
			return next(ctx, msg)
		}

		key := jobLockKey(ref.JobID)
		ok, err := d.locker.Acquire(ctx, key, d.lockTTL)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Job held by another worker", zap.Uint64("job_id", ref.JobID), zap.String("topic", msg.Topic))
			return nil
		}
		defer func() {
			if err := d.locker.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("Job lock release failed", zap.Uint64("job_id", ref.JobID), zap.Error(err))
			}
		}()
		return next(ctx, msg)
	}
}

func jobLockKey(id uint64) string {
	return "job:" + strconv.FormatUint(id, 10)
}
