package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/event"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/pool"
	"tezos-gateway/internal/service/mq"
	"tezos-gateway/internal/signer"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/crypto_util"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/monitor"
)

// SignerSource resolves secure key names.
type SignerSource interface {
	Get(name string) (signer.Signer, error)
}

type InjectRequest struct {
	JobID             uint64
	Signature         string
	SignedTransaction string
}

type SendRequest struct {
	Transactions  []event.TransactionDetail
	SecureKeyName string
	CallerID      string
}

// JobService drives jobs from created to published, either inline or
// through the broker.
type JobService struct {
	nodes         *pool.Pool[chain.Client]
	store         store.JobStore
	forging       *ForgingService
	signers       SignerSource
	producer      mq.Producer
	queues        config.QueueConfig
	retryAttempts int
}

func NewJobService(
	nodes *pool.Pool[chain.Client],
	jobs store.JobStore,
	forging *ForgingService,
	signers SignerSource,
	producer mq.Producer,
	queues config.QueueConfig,
	retryAttempts int,
) *JobService {
	return &JobService{
		nodes:         nodes,
		store:         jobs,
		forging:       forging,
		signers:       signers,
		producer:      producer,
		queues:        queues,
		retryAttempts: retryAttempts,
	}
}

func (s *JobService) GetJob(ctx context.Context, id uint64) (*model.Job, error) {
	return s.store.GetJob(ctx, id)
}

// Inject broadcasts a job forged earlier with a signature produced outside
// the gateway.
func (s *JobService) Inject(ctx context.Context, req InjectRequest) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobCreated {
		return nil, errno.ErrJobState.Withf("job %d is %s", job.ID, job.Status)
	}
	if err := s.inject(ctx, job, req); err != nil {
		return nil, err
	}
	return s.store.GetJob(ctx, job.ID)
}

// InjectAsync checks the job and queues the inject for a worker.
func (s *JobService) InjectAsync(ctx context.Context, req InjectRequest) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobCreated {
		return nil, errno.ErrJobState.Withf("job %d is %s", job.ID, job.Status)
	}

	payload, err := json.Marshal(event.InjectMessage{
		JobID:             req.JobID,
		Signature:         req.Signature,
		SignedTransaction: req.SignedTransaction,
	})
	if err != nil {
		return nil, err
	}
	if err := s.producer.Publish(ctx, &mq.Message{
		Topic:   s.queues.Inject,
		Key:     strconv.FormatUint(req.JobID, 10),
		Payload: payload,
	}); err != nil {
		return nil, fmt.Errorf("queue inject: %w", err)
	}
	return job, nil
}

// HandleInject is the worker side of InjectAsync.
func (s *JobService) HandleInject(ctx context.Context, msg *mq.Message) error {
	var m event.InjectMessage
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		logger.Error("Dropping malformed inject message", zap.String("msg_id", msg.ID), zap.Error(err))
		return nil
	}

	job, proceed, err := s.loadCreated(ctx, m.JobID)
	if !proceed {
		return err
	}
	err = s.inject(ctx, job, InjectRequest{JobID: m.JobID, Signature: m.Signature, SignedTransaction: m.SignedTransaction})
	return s.fail(ctx, job.ID, err)
}

func (s *JobService) inject(ctx context.Context, job *model.Job, req InjectRequest) error {
	if job.ForgedOperation == nil {
		return errno.ErrJobNotForged.Withf("job %d has no forged operation", job.ID)
	}
	rows, err := s.store.SelectOperationsByJobID(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errno.ErrJobNotForged.Withf("job %d has no operations", job.ID)
	}
	contents, err := contentsFromRows(rows)
	if err != nil {
		return err
	}

	hash, err := s.broadcast(ctx, rows[0].Branch, contents, req.Signature, req.SignedTransaction)
	if err != nil {
		return err
	}
	return s.publish(ctx, job.ID, store.Publication{OperationHash: hash})
}

// Send forges, signs and broadcasts in one call. Failures before the
// broadcast leave no job behind.
func (s *JobService) Send(ctx context.Context, req SendRequest) (*model.Job, error) {
	key, err := s.signers.Get(req.SecureKeyName)
	if err != nil {
		return nil, err
	}
	forged, signed, err := s.forgeAndSign(ctx, key, req.Transactions, req.CallerID)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ForgedOperation: &forged.ForgedOperation,
		OperationKind:   operationKind(forged.Contents),
		Status:          model.JobCreated,
	}
	if err := s.store.InsertJobWithOperations(ctx, job, forged.Operations); err != nil {
		return nil, err
	}
	monitor.JobTransitionsTotal.WithLabelValues(string(model.JobCreated)).Inc()

	hash, err := s.broadcast(ctx, forged.Branch, forged.Contents, signed.signature, signed.hex)
	if err != nil {
		if markErr := s.fail(ctx, job.ID, err); markErr != nil {
			logger.Error("Could not record job failure", zap.Uint64("job_id", job.ID), zap.Error(markErr))
		}
		return nil, err
	}
	if err := s.publish(ctx, job.ID, store.Publication{OperationHash: hash}); err != nil {
		return nil, err
	}
	return s.store.GetJob(ctx, job.ID)
}

// SendAsync stores a created job and its send message in one transaction.
// The relay delivers the message to the send queue.
func (s *JobService) SendAsync(ctx context.Context, req SendRequest) (*model.Job, error) {
	if _, err := s.signers.Get(req.SecureKeyName); err != nil {
		return nil, err
	}
	if len(req.Transactions) == 0 {
		return nil, errno.ErrBind.Withf("at least one transaction is required")
	}

	job := &model.Job{OperationKind: chain.KindTransaction, Status: model.JobCreated}
	err := s.store.InsertJobWithOutbox(ctx, job, s.queues.Send, func(jobID uint64) ([]byte, error) {
		return json.Marshal(event.SendTransactionsMessage{
			Transactions:  req.Transactions,
			SecureKeyName: req.SecureKeyName,
			JobID:         jobID,
			CallerID:      req.CallerID,
		})
	})
	if err != nil {
		return nil, err
	}
	monitor.JobTransitionsTotal.WithLabelValues(string(model.JobCreated)).Inc()
	logger.Info("Send job accepted", zap.Uint64("job_id", job.ID), zap.String("secure_key", req.SecureKeyName))
	return job, nil
}

// HandleSend is the worker side of SendAsync. Redelivered messages for a job
// that already left created are acknowledged without work.
func (s *JobService) HandleSend(ctx context.Context, msg *mq.Message) error {
	var m event.SendTransactionsMessage
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		logger.Error("Dropping malformed send message", zap.String("msg_id", msg.ID), zap.Error(err))
		return nil
	}

	job, proceed, err := s.loadCreated(ctx, m.JobID)
	if !proceed {
		return err
	}
	return s.fail(ctx, job.ID, s.sendExisting(ctx, job.ID, m))
}

func (s *JobService) sendExisting(ctx context.Context, jobID uint64, m event.SendTransactionsMessage) error {
	key, err := s.signers.Get(m.SecureKeyName)
	if err != nil {
		return err
	}
	forged, signed, err := s.forgeAndSign(ctx, key, m.Transactions, m.CallerID)
	if err != nil {
		return err
	}
	hash, err := s.broadcast(ctx, forged.Branch, forged.Contents, signed.signature, signed.hex)
	if err != nil {
		return err
	}
	return s.publish(ctx, jobID, store.Publication{
		OperationHash:   hash,
		ForgedOperation: forged.ForgedOperation,
		Operations:      forged.Operations,
	})
}

// loadCreated reports whether a queued job should be processed. A missing
// job is not turned into an error row; there is nothing to update.
func (s *JobService) loadCreated(ctx context.Context, id uint64) (*model.Job, bool, error) {
	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, errno.ErrJobNotFound) {
		logger.Warn("Queued job not found", zap.Uint64("job_id", id))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if job.Status != model.JobCreated {
		logger.Info("Skipping queued job", zap.Uint64("job_id", id), zap.String("status", string(job.Status)))
		return nil, false, nil
	}
	return job, true, nil
}

type signedOperation struct {
	signature string
	hex       string
}

func (s *JobService) forgeAndSign(ctx context.Context, key signer.Signer, txs []event.TransactionDetail, callerID string) (*Forged, *signedOperation, error) {
	forged, err := s.forging.Build(ctx, ForgeRequest{
		Transactions:  txs,
		SourceAddress: key.PublicKeyHash(),
		PublicKey:     key.PublicKey(),
		Reveal:        true,
		UseCache:      true,
		CallerID:      callerID,
	})
	if err != nil {
		return nil, nil, err
	}

	raw, err := hex.DecodeString(forged.ForgedOperation)
	if err != nil {
		return nil, nil, fmt.Errorf("forged operation is not hex: %w", err)
	}
	sig, err := key.Sign(ctx, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("sign: %w", err)
	}
	return forged, &signedOperation{signature: sig.Prefixed, hex: forged.ForgedOperation + sig.Hex()}, nil
}

// broadcast preapplies then injects on one node, moving to another node on
// transient failures. Chain rejections are not retried.
func (s *JobService) broadcast(ctx context.Context, branch string, contents []chain.OperationContent, signature, signedHex string) (string, error) {
	policy := pool.Policy{
		MaxAttempts:      s.retryAttempts,
		IsDefinitive:     errno.IsKnown,
		SurfaceLastError: true,
	}
	hash, ok, err := pool.Retry(ctx, s.nodes, policy, func(ctx context.Context, m pool.Member[chain.Client]) (string, error) {
		if err := m.Client.Preapply(ctx, branch, contents, signature); err != nil {
			return "", err
		}
		return m.Client.Inject(ctx, signedHex)
	})
	if errors.Is(err, pool.ErrExhausted) {
		return "", errno.ErrNodeUnavailable.Withf("%v", err)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errno.ErrNodeUnavailable
	}

	if signed, decErr := hex.DecodeString(signedHex); decErr == nil {
		if local := crypto_util.OperationHash(signed); local != hash {
			logger.Warn("Node returned an unexpected operation hash", zap.String("node_hash", hash), zap.String("local_hash", local))
		}
	}
	return hash, nil
}

func (s *JobService) publish(ctx context.Context, id uint64, p store.Publication) error {
	if err := s.store.MarkPublished(ctx, id, p); err != nil {
		return err
	}
	monitor.JobTransitionsTotal.WithLabelValues(string(model.JobPublished)).Inc()
	logger.Info("Job published", zap.Uint64("job_id", id), zap.String("operation_hash", p.OperationHash))
	return nil
}

// fail records err on the job. It returns nil once the error is stored so
// the broker does not redeliver, and the store error otherwise.
func (s *JobService) fail(ctx context.Context, id uint64, err error) error {
	if err == nil {
		return nil
	}
	if !errno.IsKnown(err) {
		logger.Error("Job failed", zap.Uint64("job_id", id), zap.Error(err))
	} else {
		logger.Warn("Job failed", zap.Uint64("job_id", id), zap.Error(err))
	}
	if markErr := s.store.MarkError(ctx, id, err.Error()); markErr != nil {
		return markErr
	}
	monitor.JobTransitionsTotal.WithLabelValues(string(model.JobError)).Inc()
	return nil
}
