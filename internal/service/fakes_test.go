package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/pool"
	"tezos-gateway/internal/schema"
	"tezos-gateway/internal/service/mq"
	"tezos-gateway/internal/signer"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/errno"
)

const (
	testContract  = "KT1BEqzn5Wx8uJrZNvuS9DVHmLvG9td3fDLi"
	testSource    = "tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb"
	testPublicKey = "edpkvGfYw3LyB1UcCahKQk4rF2tvbMUk8GFiTuMjL75uGXrpvKXhjn"
	testBranch    = "BLockGenesisGenesisGenesisGenesisGenesisf79b5d1CoW2"
	testHash      = "ooTestOperationHash"
)

var testQueues = config.QueueConfig{
	Send:         "send",
	Inject:       "inject",
	Confirmation: "confirmed",
	Group:        "workers",
}

func transferSchema() *schema.Node {
	return schema.Pair(
		schema.Primitive("nat").As("tokens"),
		schema.Primitive("address").As("destination"),
	)
}

// fakeNode is an in-memory chain.Client. Its batch estimate prepends a
// reveal for unrevealed sources like the real estimator does.
type fakeNode struct {
	mu sync.Mutex

	counter  int64
	missing  bool
	revealed bool

	revealErr   error
	preapplyErr error
	injectErr   error

	entrypoints map[string]map[string]*schema.Node

	entrypointCalls int
	estimateCalls   int
	preapplyCalls   int
	forged          [][]chain.OperationContent
	signatures      []string
	injected        []string
}

var _ chain.Client = (*fakeNode)(nil)

func newFakeNode() *fakeNode {
	return &fakeNode{
		counter:  41,
		revealed: true,
		entrypoints: map[string]map[string]*schema.Node{
			testContract: {
				"transfer": transferSchema(),
				"set_meta": schema.Map(schema.Primitive("string"), schema.Primitive("bytes")),
				"default":  schema.Primitive("unit"),
			},
		},
	}
}

func (f *fakeNode) GetCounter(ctx context.Context, address string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return 0, false, nil
	}
	return f.counter, true, nil
}

func (f *fakeNode) GetManagerKey(ctx context.Context, address string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revealed {
		return testPublicKey, nil
	}
	return "", nil
}

func (f *fakeNode) GetEntrypoints(ctx context.Context, contract string) (map[string]*schema.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entrypointCalls++
	eps, ok := f.entrypoints[contract]
	if !ok {
		return nil, errno.ErrContractNotFound
	}
	return eps, nil
}

func (f *fakeNode) GetBlockHeader(ctx context.Context) (*chain.BlockHeader, error) {
	return &chain.BlockHeader{Hash: testBranch, ChainID: "NetXnHfVqm9iesp", Protocol: "PtParisB", Level: 100}, nil
}

func (f *fakeNode) EstimateBatch(ctx context.Context, source, publicKey string, contents []chain.OperationContent) ([]chain.Estimation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++

	var out []chain.Estimation
	if publicKey != "" && !f.revealed {
		out = append(out, chain.NewEstimation(chain.KindReveal, 0, 1_000_000, 0, false, 100))
	}
	for i := range contents {
		out = append(out, chain.NewEstimation(chain.KindTransaction, 0, int64(2_000_000+i*1000), 67, false, 150))
	}
	return out, nil
}

func (f *fakeNode) EstimateReveal(ctx context.Context, address, publicKey string) (*chain.Estimation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revealErr != nil {
		return nil, f.revealErr
	}
	if f.revealed {
		return nil, nil
	}
	e := chain.NewEstimation(chain.KindReveal, 0, 1_000_000, 0, false, 100)
	return &e, nil
}

func (f *fakeNode) Forge(ctx context.Context, branch string, contents []chain.OperationContent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forged = append(f.forged, contents)
	return "a1b2c3d4", nil
}

func (f *fakeNode) Preapply(ctx context.Context, branch string, contents []chain.OperationContent, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preapplyCalls++
	f.signatures = append(f.signatures, signature)
	return f.preapplyErr
}

func (f *fakeNode) Inject(ctx context.Context, signedHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.injectErr != nil {
		return "", f.injectErr
	}
	f.injected = append(f.injected, signedHex)
	return testHash, nil
}

func nodePool(t *testing.T, node chain.Client) *pool.Pool[chain.Client] {
	t.Helper()
	p, err := pool.New("node", pool.Member[chain.Client]{Name: "fake", Client: node})
	require.NoError(t, err)
	return p
}

// memStore is an in-memory store.JobStore.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	jobs   map[uint64]*model.Job
	ops    map[uint64][]model.Operation
	outbox []model.OutboxMessage
}

var _ store.JobStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{jobs: map[uint64]*model.Job{}, ops: map[uint64][]model.Operation{}}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) InsertJobWithOperations(ctx context.Context, job *model.Job, ops []model.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = s.id()
	c := *job
	s.jobs[job.ID] = &c
	for i := range ops {
		ops[i].ID = s.id()
		ops[i].JobID = job.ID
	}
	s.ops[job.ID] = append(s.ops[job.ID], ops...)
	return nil
}

func (s *memStore) InsertJobWithOutbox(ctx context.Context, job *model.Job, topic string, payload func(jobID uint64) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID + 1
	body, err := payload(id)
	if err != nil {
		return err
	}
	s.nextID = id
	job.ID = id
	c := *job
	s.jobs[id] = &c
	s.outbox = append(s.outbox, model.OutboxMessage{ID: s.id(), Topic: topic, Key: "k", Payload: body, Status: model.OutboxPending})
	return nil
}

func (s *memStore) GetJob(ctx context.Context, id uint64) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errno.ErrJobNotFound
	}
	c := *j
	return &c, nil
}

func (s *memStore) MarkPublished(ctx context.Context, id uint64, p store.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	for i := range p.Operations {
		p.Operations[i].ID = s.id()
		p.Operations[i].JobID = id
	}
	s.ops[id] = append(s.ops[id], p.Operations...)
	hash := p.OperationHash
	j.OperationHash = &hash
	if p.ForgedOperation != "" {
		forged := p.ForgedOperation
		j.ForgedOperation = &forged
	}
	j.Status = model.JobPublished
	return nil
}

func (s *memStore) MarkError(ctx context.Context, id uint64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = model.JobError
		j.ErrorMessage = &message
	}
	return nil
}

func (s *memStore) MarkDoneIfPublished(ctx context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobPublished {
		return false, nil
	}
	j.Status = model.JobDone
	return true, nil
}

func (s *memStore) SelectJobsByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Job
	for id := uint64(1); id <= s.nextID; id++ {
		j, ok := s.jobs[id]
		if !ok || j.Status != status {
			continue
		}
		if status == model.JobPublished && j.OperationHash == nil {
			continue
		}
		out = append(out, *j)
	}
	return out, nil
}

func (s *memStore) SelectOperationsByJobID(ctx context.Context, jobID uint64) ([]model.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Operation(nil), s.ops[jobID]...), nil
}

func (s *memStore) PendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.OutboxMessage
	for _, m := range s.outbox {
		if m.Status == model.OutboxPending && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) MarkOutboxSent(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Status = model.OutboxSent
		}
	}
	return nil
}

func (s *memStore) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// fakeProducer records published messages.
type fakeProducer struct {
	mu       sync.Mutex
	err      error
	messages []*mq.Message
}

func (p *fakeProducer) Publish(ctx context.Context, msg *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) published(topic string) []*mq.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*mq.Message
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// fakeLock refuses keys listed in held.
type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (l *fakeLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

func testKeyring(t *testing.T) *signer.Keyring {
	t.Helper()
	s, err := signer.New(signer.KeyTypeEd25519, bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	ring := signer.NewKeyring()
	ring.Add("alice", s)
	return ring
}

var errTransient = errors.New("connection reset by peer")
