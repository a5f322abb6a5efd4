package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/errno"
)

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTzKTOperationBlockLevel(t *testing.T) {
	server := serve(t, map[string]string{
		"/v1/operations/ooApplied": `[{"hash":"ooApplied","level":120,"status":"applied"}]`,
		"/v1/operations/ooFailed":  `[{"hash":"ooFailed","level":120,"status":"backtracked"}]`,
		"/v1/operations/ooEmpty":   `[]`,
		"/v1/head":                 `{"level":125}`,
	})
	p := NewTzKT("tzkt", server.URL, 100, 10)

	level, err := p.GetOperationBlockLevel(context.Background(), "ooApplied")
	require.NoError(t, err)
	assert.Equal(t, int64(120), level)

	_, err = p.GetOperationBlockLevel(context.Background(), "ooFailed")
	assert.True(t, errors.Is(err, errno.ErrOperationFailed))

	_, err = p.GetOperationBlockLevel(context.Background(), "ooEmpty")
	assert.True(t, errors.Is(err, errno.ErrOperationNotFound))

	_, err = p.GetOperationBlockLevel(context.Background(), "ooMissing")
	assert.True(t, errors.Is(err, errno.ErrOperationNotFound))

	head, err := p.GetHeadLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(125), head)
}

func TestTzKTContractCallsAndBalance(t *testing.T) {
	server := serve(t, map[string]string{
		"/v1/operations/transactions": `[{"hash":"oo1","level":10,"timestamp":"2024-01-02T03:04:05Z","status":"applied","counter":5,"amount":1500000,
			"sender":{"address":"tz1a"},"target":{"address":"KT1x"},"parameter":{"entrypoint":"transfer","value":{"tokens":"1"}}}]`,
		"/v1/tokens/balances": `[{"balance":"100"},{"balance":"23"}]`,
	})
	p := NewTzKT("tzkt", server.URL, 100, 10)

	txs, err := p.GetContractCalls(context.Background(), "KT1x", Filters{Entrypoint: "transfer"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "transfer", txs[0].Entrypoint)
	assert.Equal(t, "tz1a", txs[0].Sender)
	assert.True(t, decimal.NewFromInt(1500000).Equal(txs[0].Amount))
	assert.JSONEq(t, `{"tokens":"1"}`, string(txs[0].Parameters))

	balance, err := p.GetTokenBalance(context.Background(), "KT1x", "tz1a", Filters{})
	require.NoError(t, err)
	assert.Equal(t, "123", balance.String())
}

func TestTzStatsProvider(t *testing.T) {
	server := serve(t, map[string]string{
		"/explorer/op/ooApplied":      `[{"hash":"ooApplied","height":7,"status":"applied"}]`,
		"/explorer/tip":               `{"height":9}`,
		"/explorer/contract/KT1/calls": `[{"hash":"oo2","height":7,"sender":"tz1b","receiver":"KT1","volume":1.25,"entrypoint":"mint","status":"applied"}]`,
	})
	p := NewTzStats("tzstats", server.URL, 100, 10)

	level, err := p.GetOperationBlockLevel(context.Background(), "ooApplied")
	require.NoError(t, err)
	assert.Equal(t, int64(7), level)

	txs, err := p.GetContractCalls(context.Background(), "KT1", Filters{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "1250000", txs[0].Amount.String())

	_, err = p.GetTokenBalance(context.Background(), "KT1", "tz1b", Filters{})
	assert.True(t, errors.Is(err, errno.ErrUnsupported))
	assert.False(t, IsDefinitive(err))
}

// stubProvider counts calls and replays fixed answers.
type stubProvider struct {
	name     string
	levelErr error
	level    int64
	head     int64
	calls    int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetOperationBlockLevel(ctx context.Context, hash string) (int64, error) {
	s.calls++
	return s.level, s.levelErr
}

func (s *stubProvider) GetHeadLevel(ctx context.Context) (int64, error) { return s.head, nil }

func (s *stubProvider) GetContractCalls(ctx context.Context, contract string, f Filters) ([]IndexerTransaction, error) {
	s.calls++
	return nil, errors.New("explorer down")
}

func (s *stubProvider) GetTokenBalance(ctx context.Context, contract, account string, f Filters) (decimal.Decimal, error) {
	return decimal.NewFromInt(5), nil
}

func TestPoolRetryBoundary(t *testing.T) {
	stub := &stubProvider{name: "flaky", levelErr: errors.New("connection reset")}
	p, err := NewPool(3, stub)
	require.NoError(t, err)

	_, ok, err := p.GetOperationBlockLevel(context.Background(), "oo")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, stub.calls)
}

func TestPoolIsConfirmed(t *testing.T) {
	tests := []struct {
		name    string
		stub    *stubProvider
		depth   int64
		want    bool
		wantErr error
	}{
		{name: "deep enough", stub: &stubProvider{level: 10, head: 12}, depth: 2, want: true},
		{name: "too shallow", stub: &stubProvider{level: 10, head: 11}, depth: 2},
		{name: "not found is definitive", stub: &stubProvider{levelErr: errno.ErrOperationNotFound}, depth: 2, wantErr: errno.ErrOperationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.stub.name = "stub"
			p, err := NewPool(3, tt.stub)
			require.NoError(t, err)

			got, err := p.IsConfirmed(context.Background(), "oo", tt.depth)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Equal(t, 1, tt.stub.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPoolReadsSurfaceUnavailability(t *testing.T) {
	p, err := NewPool(2, &stubProvider{name: "down"})
	require.NoError(t, err)

	_, err = p.GetContractCalls(context.Background(), "KT1", Filters{})
	assert.True(t, errors.Is(err, errno.ErrIndexerUnavailable))

	balance, err := p.GetTokenBalance(context.Background(), "KT1", "tz1", Filters{})
	require.NoError(t, err)
	assert.Equal(t, "5", balance.String())
}

func TestNewProviders(t *testing.T) {
	providers, err := NewProviders([]config.IndexerConfig{
		{Name: "a", Kind: "tzkt", URL: "http://a"},
		{Name: "b", Kind: "tzstats", URL: "http://b"},
	})
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "b", providers[1].Name())

	_, err = NewProviders([]config.IndexerConfig{{Name: "c", Kind: "bcd"}})
	assert.Error(t, err)
}
