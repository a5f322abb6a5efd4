package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/indexer"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/service"
	"tezos-gateway/pkg/errno"
)

type stubForger struct {
	got service.ForgeRequest
	err error
}

func (s *stubForger) Forge(ctx context.Context, req service.ForgeRequest) (*model.Job, []model.Operation, error) {
	s.got = req
	if s.err != nil {
		return nil, nil, s.err
	}
	return &model.Job{ID: 1, Status: model.JobCreated, OperationKind: "transaction"}, []model.Operation{{ID: 2, JobID: 1, Kind: "transaction"}}, nil
}

func (s *stubForger) Estimate(ctx context.Context, req service.ForgeRequest) ([]chain.Estimation, error) {
	s.got = req
	return []chain.Estimation{{Kind: "transaction", Counter: 5, SuggestedFee: 420}}, s.err
}

type stubJobs struct {
	inject service.InjectRequest
	send   service.SendRequest
	err    error
}

func (s *stubJobs) GetJob(ctx context.Context, id uint64) (*model.Job, error) {
	if id != 1 {
		return nil, errno.ErrJobNotFound.Withf("job %d not found", id)
	}
	return &model.Job{ID: 1, Status: model.JobPublished}, nil
}

func (s *stubJobs) Inject(ctx context.Context, req service.InjectRequest) (*model.Job, error) {
	s.inject = req
	return &model.Job{ID: req.JobID, Status: model.JobPublished}, s.err
}

func (s *stubJobs) InjectAsync(ctx context.Context, req service.InjectRequest) (*model.Job, error) {
	s.inject = req
	return &model.Job{ID: req.JobID, Status: model.JobCreated}, s.err
}

func (s *stubJobs) Send(ctx context.Context, req service.SendRequest) (*model.Job, error) {
	s.send = req
	return &model.Job{ID: 3, Status: model.JobPublished}, s.err
}

func (s *stubJobs) SendAsync(ctx context.Context, req service.SendRequest) (*model.Job, error) {
	s.send = req
	return &model.Job{ID: 3, Status: model.JobCreated}, s.err
}

type stubReader struct {
	filters indexer.Filters
}

func (s *stubReader) GetContractCalls(ctx context.Context, contract string, f indexer.Filters) ([]indexer.IndexerTransaction, error) {
	s.filters = f
	return []indexer.IndexerTransaction{{Hash: "ooA", Target: contract, Amount: decimal.NewFromInt(5)}}, nil
}

func (s *stubReader) GetTokenBalance(ctx context.Context, contract, account string, f indexer.Filters) (decimal.Decimal, error) {
	s.filters = f
	return decimal.NewFromInt(1500), nil
}

func (s *stubReader) IsConfirmed(ctx context.Context, hash string, depth int64) (bool, error) {
	if hash == "ooMissing" {
		return false, errno.ErrOperationNotFound
	}
	return depth == 2, nil
}

type envelope struct {
	Code  int             `json:"code"`
	Error string          `json:"error"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

func newRouter(forger Forger, jobs JobRunner, reader ChainReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	jh := NewJobHandler(forger, jobs)
	ch := NewChainHandler(reader, 2)
	api := r.Group("/api/v1")
	api.POST("/forge/jobs", jh.Forge)
	api.POST("/estimate", jh.Estimate)
	api.GET("/jobs/:id", jh.GetJob)
	api.PATCH("/jobs", jh.Inject)
	api.PATCH("/async/jobs", jh.InjectAsync)
	api.POST("/send/jobs", jh.Send)
	api.POST("/async/send/jobs", jh.SendAsync)
	api.GET("/contract/:address/calls", ch.ContractCalls)
	api.GET("/tokens/:contract/balance/:account", ch.TokenBalance)
	api.GET("/operations/:hash/confirmed", ch.OperationConfirmed)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

const forgeBody = `{
	"sourceAddress": "tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb",
	"reveal": true,
	"publicKey": "edpkvGfYw3LyB1UcCahKQk4rF2tvbMUk8GFiTuMjL75uGXrpvKXhjn",
	"callerId": "c-1",
	"transactions": [{"contractAddress": "KT1A", "entryPoint": "transfer", "entryPointParams": {"tokens": 1}, "fee": "1200"}]
}`

func TestForgeHandler(t *testing.T) {
	forger := &stubForger{}
	r := newRouter(forger, &stubJobs{}, &stubReader{})

	status, env := do(t, r, http.MethodPost, "/api/v1/forge/jobs", forgeBody)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)

	var res ForgeResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, uint64(1), res.Job.ID)
	assert.Len(t, res.Operations, 1)

	assert.True(t, forger.got.Reveal)
	assert.Equal(t, "c-1", forger.got.CallerID)
	require.Len(t, forger.got.Transactions, 1)
	assert.Equal(t, "1200", forger.got.Transactions[0].Fee.String())
	assert.JSONEq(t, `{"tokens":1}`, string(forger.got.Transactions[0].EntryPointParams))
}

func TestForgeHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "missing source", body: `{"transactions":[{"contractAddress":"KT1A","entryPoint":"transfer"}]}`, wantStatus: http.StatusBadRequest, wantError: "BIND_ERROR"},
		{name: "empty batch", body: `{"sourceAddress":"tz1","transactions":[]}`, wantStatus: http.StatusBadRequest, wantError: "BIND_ERROR"},
		{name: "transaction without entry point", body: `{"sourceAddress":"tz1","transactions":[{"contractAddress":"KT1A"}]}`, wantStatus: http.StatusBadRequest, wantError: "BIND_ERROR"},
		{name: "known error", body: forgeBody, err: errno.ErrInvalidMapStructureParams, wantStatus: http.StatusBadRequest, wantError: "INVALID_MAP_STRUCTURE_PARAMS"},
		{name: "unknown error is flattened", body: forgeBody, err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError, wantError: "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubForger{err: tt.err}, &stubJobs{}, &stubReader{})
			status, env := do(t, r, http.MethodPost, "/api/v1/forge/jobs", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, env.Error)
			assert.NotZero(t, env.Code)
		})
	}
}

func TestEstimateHandler(t *testing.T) {
	r := newRouter(&stubForger{}, &stubJobs{}, &stubReader{})
	status, env := do(t, r, http.MethodPost, "/api/v1/estimate", forgeBody)
	require.Equal(t, http.StatusOK, status)

	var ests []chain.Estimation
	require.NoError(t, json.Unmarshal(env.Data, &ests))
	require.Len(t, ests, 1)
	assert.Equal(t, int64(420), ests[0].SuggestedFee)
}

func TestGetJobHandler(t *testing.T) {
	r := newRouter(&stubForger{}, &stubJobs{}, &stubReader{})

	status, env := do(t, r, http.MethodGet, "/api/v1/jobs/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"published"`)

	status, env = do(t, r, http.MethodGet, "/api/v1/jobs/2", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "JOB_NOT_FOUND", env.Error)

	status, _ = do(t, r, http.MethodGet, "/api/v1/jobs/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestInjectHandlers(t *testing.T) {
	jobs := &stubJobs{}
	r := newRouter(&stubForger{}, jobs, &stubReader{})
	body := `{"jobId":7,"signature":"edsigXYZ","signedTransaction":"a1b2ff"}`

	status, _ := do(t, r, http.MethodPatch, "/api/v1/jobs", body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(7), jobs.inject.JobID)
	assert.Equal(t, "a1b2ff", jobs.inject.SignedTransaction)

	status, env := do(t, r, http.MethodPatch, "/api/v1/async/jobs", `{"jobId":7,"signature":"edsigXYZ","signedTransaction":"not hex"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BIND_ERROR", env.Error)
}

func TestSendHandlers(t *testing.T) {
	jobs := &stubJobs{}
	r := newRouter(&stubForger{}, jobs, &stubReader{})
	body := `{"secureKeyName":"alice","callerId":"c-2","transactions":[{"contractAddress":"KT1A","entryPoint":"transfer"}]}`

	status, env := do(t, r, http.MethodPost, "/api/v1/async/send/jobs", body)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"created"`)
	assert.Equal(t, "alice", jobs.send.SecureKeyName)

	jobs.err = errno.ErrSignerNotFound
	status, env = do(t, r, http.MethodPost, "/api/v1/send/jobs", body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "SIGNER_NOT_FOUND", env.Error)
}

func TestChainHandlers(t *testing.T) {
	reader := &stubReader{}
	r := newRouter(&stubForger{}, &stubJobs{}, reader)

	status, env := do(t, r, http.MethodGet, "/api/v1/contract/KT1A/calls?entrypoint=transfer&limit=10&order=desc", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, indexer.Filters{Entrypoint: "transfer", Limit: 10, Order: "desc"}, reader.filters)
	assert.Contains(t, string(env.Data), `"target":"KT1A"`)

	status, _ = do(t, r, http.MethodGet, "/api/v1/contract/KT1A/calls?order=sideways", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, r, http.MethodGet, "/api/v1/tokens/KT1T/balance/tz1A?tokenId=3", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"balance":"1500"}`, string(env.Data))
	assert.Equal(t, "3", reader.filters.TokenID)

	status, env = do(t, r, http.MethodGet, "/api/v1/operations/ooA/confirmed", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"hash":"ooA","confirmed":true,"depth":2}`, string(env.Data))

	status, env = do(t, r, http.MethodGet, "/api/v1/operations/ooMissing/confirmed", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "OPERATION_NOT_FOUND", env.Error)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	down := errors.New("dial tcp 127.0.0.1:6379: connection refused")

	tests := []struct {
		name       string
		probes     map[string]Probe
		wantStatus int
		wantBody   string
	}{
		{name: "no probes", wantStatus: http.StatusOK, wantBody: `{"status":"UP","service":"tezos-gateway"}`},
		{
			name:       "all up",
			probes:     map[string]Probe{"postgres": func(context.Context) error { return nil }},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"UP","service":"tezos-gateway","checks":{"postgres":"UP"}}`,
		},
		{
			name: "redis down",
			probes: map[string]Probe{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return down },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"DOWN","service":"tezos-gateway","checks":{"postgres":"UP","redis":"` + down.Error() + `"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tt.probes).Check)

			status, env := do(t, r, http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, status)
			assert.JSONEq(t, tt.wantBody, string(env.Data))
		})
	}
}
