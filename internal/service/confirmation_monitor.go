package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/event"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/service/mq"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/monitor"
	"tezos-gateway/pkg/utils/lock"
)

// ConfirmationChecker is satisfied by the indexer pool.
type ConfirmationChecker interface {
	IsConfirmed(ctx context.Context, hash string, depth int64) (bool, error)
}

type MonitorOptions struct {
	Schedule string
	Depth    int64
	Queue    string
	ClaimTTL time.Duration
}

// ConfirmationMonitor moves published jobs to done once their operation is
// deep enough and announces each confirmed transaction.
type ConfirmationMonitor struct {
	cron     *cron.Cron
	store    store.JobStore
	checker  ConfirmationChecker
	producer mq.Producer
	locker   lock.DistributedLock
	opts     MonitorOptions
}

// NewConfirmationMonitor builds the monitor; locker may be nil for a single
// instance deployment.
func NewConfirmationMonitor(jobs store.JobStore, checker ConfirmationChecker, producer mq.Producer, locker lock.DistributedLock, opts MonitorOptions) *ConfirmationMonitor {
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = time.Minute
	}
	return &ConfirmationMonitor{
		cron:     cron.New(),
		store:    jobs,
		checker:  checker,
		producer: producer,
		locker:   locker,
		opts:     opts,
	}
}

func (m *ConfirmationMonitor) Start() error {
	// 每个 tick 都会启动一次 sweep, 不等待上一次结束
	if _, err := m.cron.AddFunc(m.opts.Schedule, func() { m.Sweep(context.Background()) }); err != nil {
		return err
	}
	m.cron.Start()
	logger.Info("Confirmation monitor started", zap.String("schedule", m.opts.Schedule), zap.Int64("depth", m.opts.Depth))
	return nil
}

// Stop waits for running sweeps.
func (m *ConfirmationMonitor) Stop() {
	<-m.cron.Stop().Done()
	logger.Info("Confirmation monitor stopped")
}

// Sweep checks every published job once. A failing job never blocks the
// others.
func (m *ConfirmationMonitor) Sweep(ctx context.Context) {
	jobs, err := m.store.SelectJobsByStatus(ctx, model.JobPublished)
	if err != nil {
		logger.Error("Confirmation sweep could not list jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}
	logger.Debug("Confirmation sweep", zap.Int("jobs", len(jobs)))

	var g errgroup.Group
	g.SetLimit(16)
	for _, job := range jobs {
		g.Go(func() error {
			if err := m.checkJob(ctx, job); err != nil {
				logger.Error("Confirmation check failed", zap.Uint64("job_id", job.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (m *ConfirmationMonitor) checkJob(ctx context.Context, job model.Job) error {
	if job.OperationHash == nil {
		return nil
	}
	if m.locker != nil {
		key := "confirm:" + strconv.FormatUint(job.ID, 10)
		ok, err := m.locker.Acquire(ctx, key, m.opts.ClaimTTL)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		defer func() { _ = m.locker.Release(context.WithoutCancel(ctx), key) }()
	}

	hash := *job.OperationHash
	confirmed, err := m.checker.IsConfirmed(ctx, hash, m.opts.Depth)
	switch {
	case errors.Is(err, errno.ErrOperationNotFound):
		logger.Debug("Operation not indexed yet", zap.Uint64("job_id", job.ID), zap.String("hash", hash))
		return nil
	case errors.Is(err, errno.ErrOperationFailed):
		// published 只能走向 done, 留给下一次 sweep
		logger.Warn("Operation failed on chain, job left published", zap.Uint64("job_id", job.ID), zap.String("hash", hash), zap.Error(err))
		return nil
	case err != nil:
		return err
	case !confirmed:
		return nil
	}

	changed, err := m.store.MarkDoneIfPublished(ctx, job.ID)
	if err != nil {
		return err
	}
	if !changed {
		// 另一个 sweep 已经处理
		return nil
	}
	monitor.JobTransitionsTotal.WithLabelValues(string(model.JobDone)).Inc()
	logger.Info("Job confirmed", zap.Uint64("job_id", job.ID), zap.String("hash", hash))

	return m.announce(ctx, job.ID)
}

func (m *ConfirmationMonitor) announce(ctx context.Context, jobID uint64) error {
	rows, err := m.store.SelectOperationsByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	for _, op := range rows {
		if op.Kind != chain.KindTransaction {
			continue
		}
		msg, err := confirmedMessage(m.opts.Queue, jobID, op)
		if err != nil {
			return err
		}
		if err := m.producer.Publish(ctx, msg); err != nil {
			return err
		}
		monitor.ConfirmationEventsTotal.Inc()
	}
	return nil
}

func confirmedMessage(queue string, jobID uint64, op model.Operation) (*mq.Message, error) {
	params := json.RawMessage("null")
	switch {
	case op.ParametersJSON != nil:
		params = json.RawMessage(*op.ParametersJSON)
	case op.Parameters != nil:
		params = json.RawMessage(*op.Parameters)
	}
	body, err := json.Marshal(event.TransactionConfirmed{
		ContractAddress: deref(op.Destination),
		Entrypoint:      deref(op.Entrypoint),
		Parameters:      params,
		JobID:           jobID,
	})
	if err != nil {
		return nil, err
	}
	return &mq.Message{
		Topic:   queue,
		Key:     strconv.FormatUint(jobID, 10),
		Payload: body,
		Metadata: map[string]string{
			event.HeaderEntrypoint:      deref(op.Entrypoint),
			event.HeaderContractAddress: deref(op.Destination),
			event.HeaderCallerID:        deref(op.CallerID),
		},
	}, nil
}
