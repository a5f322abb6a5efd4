// Package store persists jobs, their operation rows and outbox messages.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tezos-gateway/internal/model"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/logger"
)

// JobStore is the durable record of jobs. Status updates are last writer
// wins keyed by job id; updates to an unknown id are logged and ignored.
type JobStore interface {
	// InsertJobWithOperations stores a job and its operation rows in one
	// transaction, filling in ids.
	InsertJobWithOperations(ctx context.Context, job *model.Job, ops []model.Operation) error
	// InsertJobWithOutbox stores a job and the outbox message built from its
	// id in one transaction.
	InsertJobWithOutbox(ctx context.Context, job *model.Job, topic string, payload func(jobID uint64) ([]byte, error)) error
	GetJob(ctx context.Context, id uint64) (*model.Job, error)
	// MarkPublished records the broadcast and moves the job to published.
	MarkPublished(ctx context.Context, id uint64, p Publication) error
	MarkError(ctx context.Context, id uint64, message string) error
	// MarkDoneIfPublished moves a published job to done and reports whether
	// this call made the transition.
	MarkDoneIfPublished(ctx context.Context, id uint64) (bool, error)
	SelectJobsByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error)
	SelectOperationsByJobID(ctx context.Context, jobID uint64) ([]model.Operation, error)

	PendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id uint64) error
}

// Publication is what a successful broadcast adds to a job. Operations and
// ForgedOperation are only set when the job did not carry them already.
type Publication struct {
	OperationHash   string
	ForgedOperation string
	Operations      []model.Operation
}

type GormStore struct {
	db *gorm.DB
}

var _ JobStore = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func dbError(op string, err error) error {
	return errno.ErrDatabase.Withf("%s: %v", op, err)
}

func (s *GormStore) InsertJobWithOperations(ctx context.Context, job *model.Job, ops []model.Operation) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if len(ops) == 0 {
			return nil
		}
		for i := range ops {
			ops[i].JobID = job.ID
		}
		return tx.Create(&ops).Error
	})
	if err != nil {
		return dbError("insert job", err)
	}
	return nil
}

func (s *GormStore) InsertJobWithOutbox(ctx context.Context, job *model.Job, topic string, payload func(jobID uint64) ([]byte, error)) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		body, err := payload(job.ID)
		if err != nil {
			return err
		}
		return tx.Create(&model.OutboxMessage{
			Topic:   topic,
			Key:     fmt.Sprint(job.ID),
			Payload: body,
			Status:  model.OutboxPending,
		}).Error
	})
	if err != nil {
		return dbError("insert job with outbox", err)
	}
	return nil
}

func (s *GormStore) GetJob(ctx context.Context, id uint64) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errno.ErrJobNotFound.Withf("job %d not found", id)
	}
	if err != nil {
		return nil, dbError("get job", err)
	}
	return &job, nil
}

func (s *GormStore) updateJob(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]any) error {
	res := tx.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		logger.Warn("Job update matched no row", zap.Uint64("job_id", id), zap.Any("fields", fields))
	}
	return nil
}

func (s *GormStore) MarkPublished(ctx context.Context, id uint64, p Publication) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(p.Operations) > 0 {
			for i := range p.Operations {
				p.Operations[i].JobID = id
			}
			if err := tx.Create(&p.Operations).Error; err != nil {
				return err
			}
		}
		fields := map[string]any{
			"operation_hash": p.OperationHash,
			"status":         model.JobPublished,
		}
		if p.ForgedOperation != "" {
			fields["forged_operation"] = p.ForgedOperation
		}
		return s.updateJob(ctx, tx, id, fields)
	})
	if err != nil {
		return dbError("mark published", err)
	}
	return nil
}

func (s *GormStore) MarkError(ctx context.Context, id uint64, message string) error {
	if err := s.updateJob(ctx, s.db, id, map[string]any{
		"status":        model.JobError,
		"error_message": message,
	}); err != nil {
		return dbError("mark error", err)
	}
	return nil
}

func (s *GormStore) MarkDoneIfPublished(ctx context.Context, id uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobPublished).
		Update("status", model.JobDone)
	if res.Error != nil {
		return false, dbError("mark done", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) SelectJobsByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	var jobs []model.Job
	q := s.db.WithContext(ctx).Where("status = ?", status)
	if status == model.JobPublished {
		q = q.Where("operation_hash IS NOT NULL")
	}
	if err := q.Order("id").Find(&jobs).Error; err != nil {
		return nil, dbError("select jobs", err)
	}
	return jobs, nil
}

func (s *GormStore) SelectOperationsByJobID(ctx context.Context, jobID uint64) ([]model.Operation, error) {
	var ops []model.Operation
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("counter").Find(&ops).Error; err != nil {
		return nil, dbError("select operations", err)
	}
	return ops, nil
}

func (s *GormStore) PendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).Where("status = ?", model.OutboxPending).Order("id").Limit(limit).Find(&messages).Error; err != nil {
		return nil, dbError("pending outbox", err)
	}
	return messages, nil
}

func (s *GormStore) MarkOutboxSent(ctx context.Context, id uint64) error {
	if err := s.db.WithContext(ctx).Model(&model.OutboxMessage{}).Where("id = ?", id).Update("status", model.OutboxSent).Error; err != nil {
		return dbError("mark outbox sent", err)
	}
	return nil
}
