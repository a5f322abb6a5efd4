package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/encoder"
	"tezos-gateway/internal/event"
	"tezos-gateway/internal/michelson"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/pool"
	"tezos-gateway/internal/schema"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/cache"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/monitor"
)

// ForgeRequest is a batch of entry point calls from one source account.
// Reveal asks for a reveal operation when the account is not revealed yet
// and requires PublicKey.
type ForgeRequest struct {
	Transactions  []event.TransactionDetail
	SourceAddress string
	PublicKey     string
	Reveal        bool
	UseCache      bool
	CallerID      string
}

// Forged is a built batch ready to be signed or persisted.
type Forged struct {
	Branch          string
	ForgedOperation string
	Contents        []chain.OperationContent
	Estimations     []chain.Estimation
	Operations      []model.Operation
}

type ForgingOptions struct {
	MaxOperationsPerBatch int
	RetryAttempts         int
	SchemaTTL             time.Duration
}

// ForgingService builds, estimates and forges operation batches.
type ForgingService struct {
	nodes *pool.Pool[chain.Client]
	store store.JobStore
	cache cache.Cache
	opts  ForgingOptions
}

func NewForgingService(nodes *pool.Pool[chain.Client], jobs store.JobStore, schemas cache.Cache, opts ForgingOptions) *ForgingService {
	if opts.MaxOperationsPerBatch <= 0 {
		opts.MaxOperationsPerBatch = 5
	}
	return &ForgingService{nodes: nodes, store: jobs, cache: schemas, opts: opts}
}

// Forge builds the batch and stores it as a created job with one operation
// row per content. Nothing is stored when building fails.
func (s *ForgingService) Forge(ctx context.Context, req ForgeRequest) (*model.Job, []model.Operation, error) {
	start := time.Now()
	forged, err := s.Build(ctx, req)
	if err != nil {
		monitor.ForgeDuration.WithLabelValues("forge", "error").Observe(time.Since(start).Seconds())
		return nil, nil, err
	}

	job := &model.Job{
		ForgedOperation: &forged.ForgedOperation,
		OperationKind:   operationKind(forged.Contents),
		Status:          model.JobCreated,
	}
	if err := s.store.InsertJobWithOperations(ctx, job, forged.Operations); err != nil {
		monitor.ForgeDuration.WithLabelValues("forge", "error").Observe(time.Since(start).Seconds())
		return nil, nil, err
	}
	monitor.ForgeDuration.WithLabelValues("forge", "ok").Observe(time.Since(start).Seconds())
	monitor.JobTransitionsTotal.WithLabelValues(string(model.JobCreated)).Inc()

	logger.Info("Job forged",
		zap.Uint64("job_id", job.ID),
		zap.String("source", req.SourceAddress),
		zap.Int("operations", len(forged.Operations)),
	)
	return job, forged.Operations, nil
}

// Estimate runs the same pipeline as Forge without forging or storing.
func (s *ForgingService) Estimate(ctx context.Context, req ForgeRequest) ([]chain.Estimation, error) {
	start := time.Now()
	node := s.nodes.PickRandom().Client
	p, err := s.prepare(ctx, node, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	monitor.ForgeDuration.WithLabelValues("estimate", outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return p.estimations, nil
}

// Build prepares and forges the batch on one node without persisting it.
func (s *ForgingService) Build(ctx context.Context, req ForgeRequest) (*Forged, error) {
	node := s.nodes.PickRandom().Client
	p, err := s.prepare(ctx, node, req)
	if err != nil {
		return nil, err
	}

	header, err := node.GetBlockHeader(ctx)
	if err != nil {
		return nil, unexpected("get block header", err)
	}
	forged, err := node.Forge(ctx, header.Hash, p.contents)
	if err != nil {
		return nil, unexpected("forge", err)
	}

	return &Forged{
		Branch:          header.Hash,
		ForgedOperation: forged,
		Contents:        p.contents,
		Estimations:     p.estimations,
		Operations:      operationRows(p.contents, header.Hash, req.CallerID, p.paramsJSON),
	}, nil
}

type prepared struct {
	contents    []chain.OperationContent
	estimations []chain.Estimation
	// paramsJSON is indexed like contents; reveal entries are nil
	paramsJSON []json.RawMessage
}

func (s *ForgingService) prepare(ctx context.Context, node chain.Client, req ForgeRequest) (*prepared, error) {
	if req.Reveal && req.PublicKey == "" {
		return nil, errno.ErrPublicKeyRequired
	}
	if len(req.Transactions) == 0 {
		return nil, errno.ErrBind.Withf("at least one transaction is required")
	}
	if len(req.Transactions) > s.opts.MaxOperationsPerBatch {
		return nil, maxOperations(len(req.Transactions), s.opts.MaxOperationsPerBatch)
	}
	for i, tx := range req.Transactions {
		if !tx.Fee.IsInteger() {
			return nil, errno.ErrBind.Withf("transaction %d: fee %s is not a whole number of mutez", i, tx.Fee)
		}
	}

	counter, ok, err := node.GetCounter(ctx, req.SourceAddress)
	if err != nil {
		return nil, unexpected("get counter", err)
	}
	if !ok {
		return nil, errno.ErrAddressNotFound.Withf("address %s not found", req.SourceAddress)
	}
	if !req.Reveal {
		manager, err := node.GetManagerKey(ctx, req.SourceAddress)
		if err != nil {
			return nil, unexpected("get manager key", err)
		}
		if manager == "" {
			return nil, errno.ErrAddressNotRevealed.Withf("address %s is not revealed, set reveal and publicKey", req.SourceAddress)
		}
	}

	reveal, revealEst, err := s.revealOperation(ctx, node, req)
	if err != nil {
		return nil, err
	}
	total := len(req.Transactions)
	if reveal != nil {
		total++
	}
	if total > s.opts.MaxOperationsPerBatch {
		return nil, maxOperations(total, s.opts.MaxOperationsPerBatch)
	}

	txs, params, err := s.buildTransactions(ctx, node, req)
	if err != nil {
		return nil, err
	}

	publicKey := ""
	if reveal != nil {
		publicKey = req.PublicKey
	}
	ests, err := node.EstimateBatch(ctx, req.SourceAddress, publicKey, txs)
	if err != nil {
		return nil, unexpected("estimate batch", err)
	}
	ests = stripImplicitReveal(ests, reveal != nil, len(txs))
	if len(ests) != len(txs) {
		return nil, unexpected("estimate batch", fmt.Errorf("got %d estimations for %d transactions", len(ests), len(txs)))
	}

	p := &prepared{}
	next := counter + 1
	if reveal != nil {
		revealEst.Counter = next
		reveal.Counter = decimal.NewFromInt(next).String()
		p.contents = append(p.contents, *reveal)
		p.estimations = append(p.estimations, *revealEst)
		p.paramsJSON = append(p.paramsJSON, nil)
		next++
	}
	for i, tx := range txs {
		est := ests[i]
		est.Counter = next
		tx.Counter = decimal.NewFromInt(next).String()
		tx.Apply(est)
		if fee := req.Transactions[i].Fee; fee.IsPositive() {
			tx.Fee = fee.String()
		}
		p.contents = append(p.contents, tx)
		p.estimations = append(p.estimations, est)
		p.paramsJSON = append(p.paramsJSON, params[i])
		next++
	}
	return p, nil
}

// revealOperation returns nil when no reveal was requested or the account
// is already revealed.
func (s *ForgingService) revealOperation(ctx context.Context, node chain.Client, req ForgeRequest) (*chain.OperationContent, *chain.Estimation, error) {
	if !req.Reveal {
		return nil, nil, nil
	}
	est, err := node.EstimateReveal(ctx, req.SourceAddress, req.PublicKey)
	if err != nil {
		return nil, nil, errno.ErrRevealEstimate.Withf("could not estimate the reveal of %s: %v", req.SourceAddress, err)
	}
	if est == nil {
		logger.Debug("Source already revealed, no reveal prepended", zap.String("source", req.SourceAddress))
		return nil, nil, nil
	}
	op := &chain.OperationContent{
		Kind:      chain.KindReveal,
		Source:    req.SourceAddress,
		PublicKey: req.PublicKey,
	}
	op.Apply(*est)
	return op, est, nil
}

// buildTransactions encodes every call concurrently; results keep request
// order.
func (s *ForgingService) buildTransactions(ctx context.Context, node chain.Client, req ForgeRequest) ([]chain.OperationContent, []json.RawMessage, error) {
	contents := make([]chain.OperationContent, len(req.Transactions))
	params := make([]json.RawMessage, len(req.Transactions))

	g, gctx := errgroup.WithContext(ctx)
	for i, tx := range req.Transactions {
		g.Go(func() error {
			content, err := s.buildTransaction(gctx, node, req, tx)
			if err != nil {
				return err
			}
			contents[i] = content
			params[i] = tx.EntryPointParams
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return contents, params, nil
}

func (s *ForgingService) buildTransaction(ctx context.Context, node chain.Client, req ForgeRequest, tx event.TransactionDetail) (chain.OperationContent, error) {
	entrypoints, err := s.entrypoints(ctx, node, tx.ContractAddress, req.UseCache)
	if err != nil {
		return chain.OperationContent{}, err
	}
	ep, ok := entrypoints[tx.EntryPoint]
	if !ok {
		return chain.OperationContent{}, errno.ErrEntrypointNotFound.Withf("contract %s has no entry point %q", tx.ContractAddress, tx.EntryPoint)
	}

	if _, err := encoder.Encode(ep, tx.EntryPointParams); err != nil {
		return chain.OperationContent{}, err
	}
	value, err := payload(ep, tx.EntryPointParams)
	if err != nil {
		return chain.OperationContent{}, err
	}

	return chain.OperationContent{
		Kind:        chain.KindTransaction,
		Source:      req.SourceAddress,
		Amount:      tx.Amount.String(),
		Destination: tx.ContractAddress,
		Parameters:  &chain.Parameters{Entrypoint: tx.EntryPoint, Value: value},
	}, nil
}

// payload renders the Micheline value of a call. Absent parameters stand
// for Unit.
func payload(ep *schema.Node, raw json.RawMessage) (michelson.Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 || ep.Prim == "unit" {
		return michelson.Prim("Unit"), nil
	}
	params, err := encoder.Decode(raw)
	if err != nil {
		return michelson.Node{}, errno.ErrUnknownParameterType.Withf("parameters are not valid JSON: %v", err)
	}
	return michelson.BuildValue(ep, params)
}

func (s *ForgingService) entrypoints(ctx context.Context, node chain.Client, contract string, useCache bool) (map[string]*schema.Node, error) {
	key := "entrypoints:" + contract
	if useCache && s.cache != nil {
		var cached map[string]*schema.Node
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	eps, err := node.GetEntrypoints(ctx, contract)
	if err != nil {
		if errno.IsKnown(err) {
			return nil, err
		}
		return nil, unexpected("get entry points", err)
	}

	if useCache && s.cache != nil {
		if err := s.cache.Set(ctx, key, eps, s.opts.SchemaTTL); err != nil {
			logger.Warn("Schema cache write failed", zap.String("contract", contract), zap.Error(err))
		}
	}
	return eps, nil
}

// stripImplicitReveal drops the reveal estimate the estimator adds on its
// own for unrevealed sources; the reveal is already accounted for.
func stripImplicitReveal(ests []chain.Estimation, revealRequested bool, transactions int) []chain.Estimation {
	if revealRequested && len(ests) == transactions+1 && ests[0].Kind == chain.KindReveal {
		return ests[1:]
	}
	return ests
}

func maxOperations(got, limit int) error {
	return errno.ErrMaxOperationsPerBatch.Withf("batch has %d operations, the maximum is %d", got, limit)
}

// unexpected logs errors outside the known set. Known errors pass through
// untouched.
func unexpected(step string, err error) error {
	if errno.IsKnown(err) || errors.Is(err, context.Canceled) {
		return err
	}
	logger.Error("Unexpected forging failure", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}

func operationKind(contents []chain.OperationContent) string {
	for _, c := range contents {
		if c.Kind == chain.KindTransaction {
			return chain.KindTransaction
		}
	}
	if len(contents) > 0 {
		return contents[0].Kind
	}
	return chain.KindTransaction
}

func operationRows(contents []chain.OperationContent, branch, callerID string, paramsJSON []json.RawMessage) []model.Operation {
	rows := make([]model.Operation, 0, len(contents))
	for i, c := range contents {
		row := model.Operation{
			Branch:       branch,
			Kind:         c.Kind,
			Source:       c.Source,
			Amount:       parseMutez(c.Amount),
			Fee:          parseMutez(c.Fee),
			Counter:      parseMutez(c.Counter).IntPart(),
			GasLimit:     parseMutez(c.GasLimit).IntPart(),
			StorageLimit: parseMutez(c.StorageLimit).IntPart(),
			CallerID:     optional(callerID),
			PublicKey:    optional(c.PublicKey),
			Destination:  optional(c.Destination),
		}
		if c.Parameters != nil {
			row.Entrypoint = optional(c.Parameters.Entrypoint)
			if b, err := json.Marshal(c.Parameters.Value); err == nil {
				row.Parameters = optional(string(b))
			}
		}
		if i < len(paramsJSON) && len(paramsJSON[i]) > 0 {
			row.ParametersJSON = optional(string(paramsJSON[i]))
		}
		rows = append(rows, row)
	}
	return rows
}

// contentsFromRows rebuilds the forged contents from stored rows.
func contentsFromRows(rows []model.Operation) ([]chain.OperationContent, error) {
	contents := make([]chain.OperationContent, 0, len(rows))
	for _, r := range rows {
		c := chain.OperationContent{
			Kind:         r.Kind,
			Source:       r.Source,
			Fee:          r.Fee.String(),
			Counter:      decimal.NewFromInt(r.Counter).String(),
			GasLimit:     decimal.NewFromInt(r.GasLimit).String(),
			StorageLimit: decimal.NewFromInt(r.StorageLimit).String(),
			PublicKey:    deref(r.PublicKey),
		}
		if r.Kind == chain.KindTransaction {
			c.Amount = r.Amount.String()
			c.Destination = deref(r.Destination)
			if r.Entrypoint != nil {
				var value michelson.Node
				if err := json.Unmarshal([]byte(deref(r.Parameters)), &value); err != nil {
					return nil, fmt.Errorf("operation %d: stored parameters: %w", r.ID, err)
				}
				c.Parameters = &chain.Parameters{Entrypoint: *r.Entrypoint, Value: value}
			}
		}
		contents = append(contents, c)
	}
	return contents, nil
}

func parseMutez(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
