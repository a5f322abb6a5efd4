package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/event"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/service/mq"
	"tezos-gateway/pkg/errno"
)

type jobFixture struct {
	node     *fakeNode
	store    *memStore
	producer *fakeProducer
	forging  *ForgingService
	jobs     *JobService
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	f := &jobFixture{node: newFakeNode(), store: newMemStore(), producer: &fakeProducer{}}
	nodes := nodePool(t, f.node)
	f.forging = NewForgingService(nodes, f.store, nil, ForgingOptions{MaxOperationsPerBatch: 5})
	f.jobs = NewJobService(nodes, f.store, f.forging, testKeyring(t), f.producer, testQueues, 2)
	return f
}

func (f *jobFixture) forge(t *testing.T) *model.Job {
	t.Helper()
	job, _, err := f.forging.Forge(t.Context(), ForgeRequest{Transactions: transfers(1), SourceAddress: testSource})
	require.NoError(t, err)
	return job
}

func TestJobService_Inject(t *testing.T) {
	f := newJobFixture(t)
	job := f.forge(t)

	got, err := f.jobs.Inject(t.Context(), InjectRequest{JobID: job.ID, Signature: "edsigSigned", SignedTransaction: "a1b2c3d4ff"})
	require.NoError(t, err)

	assert.Equal(t, model.JobPublished, got.Status)
	require.NotNil(t, got.OperationHash)
	assert.Equal(t, testHash, *got.OperationHash)
	assert.Equal(t, []string{"edsigSigned"}, f.node.signatures)
	assert.Equal(t, []string{"a1b2c3d4ff"}, f.node.injected)

	_, err = f.jobs.Inject(t.Context(), InjectRequest{JobID: job.ID, Signature: "edsigSigned", SignedTransaction: "a1b2c3d4ff"})
	assert.ErrorIs(t, err, errno.ErrJobState)
}

func TestJobService_InjectUnknownJob(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.jobs.Inject(t.Context(), InjectRequest{JobID: 99})
	assert.ErrorIs(t, err, errno.ErrJobNotFound)

	_, err = f.jobs.InjectAsync(t.Context(), InjectRequest{JobID: 99})
	assert.ErrorIs(t, err, errno.ErrJobNotFound)
	assert.Empty(t, f.producer.messages)
}

func TestJobService_InjectAsync(t *testing.T) {
	f := newJobFixture(t)
	job := f.forge(t)

	queued, err := f.jobs.InjectAsync(t.Context(), InjectRequest{JobID: job.ID, Signature: "edsigSigned", SignedTransaction: "a1b2c3d4ff"})
	require.NoError(t, err)
	assert.Equal(t, model.JobCreated, queued.Status)

	msgs := f.producer.published(testQueues.Inject)
	require.Len(t, msgs, 1)

	require.NoError(t, f.jobs.HandleInject(t.Context(), msgs[0]))
	got, err := f.store.GetJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPublished, got.Status)

	// redelivery is a no-op
	require.NoError(t, f.jobs.HandleInject(t.Context(), msgs[0]))
	assert.Len(t, f.node.injected, 1)
}

func TestJobService_HandleInjectRejected(t *testing.T) {
	f := newJobFixture(t)
	job := f.forge(t)
	f.node.preapplyErr = errno.ErrOperationRejected.Withf("proto.alpha.contract.balance_too_low")

	payload, err := json.Marshal(event.InjectMessage{JobID: job.ID, Signature: "edsigSigned", SignedTransaction: "a1b2c3d4ff"})
	require.NoError(t, err)

	require.NoError(t, f.jobs.HandleInject(t.Context(), &mq.Message{Topic: testQueues.Inject, Payload: payload}))

	got, err := f.store.GetJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "balance_too_low")
	assert.Equal(t, 1, f.node.preapplyCalls)
}

func TestJobService_SendRevealsAndPublishes(t *testing.T) {
	f := newJobFixture(t)
	f.node.revealed = false

	job, err := f.jobs.Send(t.Context(), SendRequest{Transactions: transfers(2), SecureKeyName: "alice", CallerID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, model.JobPublished, job.Status)
	assert.Equal(t, testHash, *job.OperationHash)

	ops, err := f.store.SelectOperationsByJobID(t.Context(), job.ID)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, chain.KindReveal, ops[0].Kind)

	key, err := testKeyring(t).Get("alice")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKeyHash(), ops[0].Source)
	assert.Equal(t, key.PublicKey(), *ops[0].PublicKey)

	require.Len(t, f.node.signatures, 1)
	assert.True(t, strings.HasPrefix(f.node.signatures[0], "edsig"))
	require.Len(t, f.node.injected, 1)
	// forged bytes followed by the 64 byte signature
	assert.True(t, strings.HasPrefix(f.node.injected[0], "a1b2c3d4"))
	assert.Len(t, f.node.injected[0], len("a1b2c3d4")+128)
}

func TestJobService_SendUnknownKey(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.jobs.Send(t.Context(), SendRequest{Transactions: transfers(1), SecureKeyName: "bob"})
	assert.ErrorIs(t, err, errno.ErrSignerNotFound)

	_, err = f.jobs.SendAsync(t.Context(), SendRequest{Transactions: transfers(1), SecureKeyName: "bob"})
	assert.ErrorIs(t, err, errno.ErrSignerNotFound)
	assert.Equal(t, 0, f.store.jobCount())
}

func TestJobService_SendBroadcastFailures(t *testing.T) {
	tests := []struct {
		name         string
		preapplyErr  error
		wantErr      *errno.Errno
		wantPreapply int
	}{
		{name: "rejection is not retried", preapplyErr: errno.ErrOperationRejected, wantErr: errno.ErrOperationRejected, wantPreapply: 1},
		{name: "transient failure spends the budget", preapplyErr: errTransient, wantErr: errno.ErrNodeUnavailable, wantPreapply: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobFixture(t)
			f.node.preapplyErr = tt.preapplyErr

			_, err := f.jobs.Send(t.Context(), SendRequest{Transactions: transfers(1), SecureKeyName: "alice"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantPreapply, f.node.preapplyCalls)

			jobs, err := f.store.SelectJobsByStatus(t.Context(), model.JobError)
			require.NoError(t, err)
			assert.Len(t, jobs, 1)
		})
	}
}

func TestJobService_SendAsyncThroughOutbox(t *testing.T) {
	f := newJobFixture(t)

	job, err := f.jobs.SendAsync(t.Context(), SendRequest{Transactions: transfers(1), SecureKeyName: "alice", CallerID: "c-9"})
	require.NoError(t, err)
	assert.Equal(t, model.JobCreated, job.Status)
	assert.Nil(t, job.ForgedOperation)

	relay := NewRelayService(f.store, f.producer)
	assert.Equal(t, 1, relay.RelayPending(t.Context()))
	assert.Equal(t, 0, relay.RelayPending(t.Context()))

	msgs := f.producer.published(testQueues.Send)
	require.Len(t, msgs, 1)

	var m event.SendTransactionsMessage
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &m))
	assert.Equal(t, job.ID, m.JobID)
	assert.Equal(t, "c-9", m.CallerID)

	require.NoError(t, f.jobs.HandleSend(t.Context(), msgs[0]))
	got, err := f.store.GetJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPublished, got.Status)
	require.NotNil(t, got.ForgedOperation)
	assert.Equal(t, "a1b2c3d4", *got.ForgedOperation)

	ops, err := f.store.SelectOperationsByJobID(t.Context(), job.ID)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "c-9", *ops[0].CallerID)

	// at least once delivery: the second copy is skipped
	require.NoError(t, f.jobs.HandleSend(t.Context(), msgs[0]))
	assert.Len(t, f.node.injected, 1)
}

func TestJobService_HandleSendFailureMarksError(t *testing.T) {
	f := newJobFixture(t)
	job, err := f.jobs.SendAsync(t.Context(), SendRequest{
		Transactions:  []event.TransactionDetail{{ContractAddress: testContract, EntryPoint: "mint"}},
		SecureKeyName: "alice",
	})
	require.NoError(t, err)

	NewRelayService(f.store, f.producer).RelayPending(t.Context())
	msgs := f.producer.published(testQueues.Send)
	require.Len(t, msgs, 1)

	require.NoError(t, f.jobs.HandleSend(t.Context(), msgs[0]))
	got, err := f.store.GetJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	assert.Contains(t, *got.ErrorMessage, "mint")
}

func TestJobService_HandleSendMissingJob(t *testing.T) {
	f := newJobFixture(t)
	payload, err := json.Marshal(event.SendTransactionsMessage{JobID: 404, SecureKeyName: "alice", Transactions: transfers(1)})
	require.NoError(t, err)

	assert.NoError(t, f.jobs.HandleSend(t.Context(), &mq.Message{Payload: payload}))
	assert.Zero(t, f.node.estimateCalls)
}

func TestRelayService_KeepsFailedMessagesPending(t *testing.T) {
	f := newJobFixture(t)
	_, err := f.jobs.SendAsync(t.Context(), SendRequest{Transactions: transfers(1), SecureKeyName: "alice"})
	require.NoError(t, err)

	f.producer.err = errTransient
	relay := NewRelayService(f.store, f.producer)
	assert.Equal(t, 0, relay.RelayPending(t.Context()))

	pending, err := f.store.PendingOutbox(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	f.producer.err = nil
	assert.Equal(t, 1, relay.RelayPending(t.Context()))
}

func TestDispatcher_GuardSkipsHeldJobs(t *testing.T) {
	locker := &fakeLock{held: map[string]bool{"job:7": true}}
	d := &Dispatcher{locker: locker}

	calls := 0
	handler := d.guard(func(ctx context.Context, msg *mq.Message) error {
		calls++
		return nil
	})

	require.NoError(t, handler(t.Context(), &mq.Message{Payload: []byte(`{"jobId":7}`)}))
	assert.Equal(t, 0, calls)

	require.NoError(t, handler(t.Context(), &mq.Message{Payload: []byte(`{"jobId":8}`)}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"job:8"}, locker.released)
}
