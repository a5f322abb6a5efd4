// Package indexer reads chain history from block explorers (TzKT, TzStats)
// and spreads the calls over a retrying pool.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tezos-gateway/pkg/errno"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filters narrows contract call and token balance queries.
type Filters struct {
	Entrypoint string
	TokenID    string
	Limit      int
	Offset     int
	Order      string
}

func (f Filters) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}

// IndexerTransaction is a contract call normalized across explorers.
// Amount is in mutez.
type IndexerTransaction struct {
	Hash       string          `json:"hash"`
	Level      int64           `json:"level"`
	Timestamp  time.Time       `json:"timestamp"`
	Sender     string          `json:"sender"`
	Target     string          `json:"target"`
	Entrypoint string          `json:"entrypoint,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Counter    int64           `json:"counter"`
	Status     string          `json:"status"`
}

// Provider is one explorer. GetOperationBlockLevel fails with
// errno.ErrOperationNotFound when the hash is unknown and
// errno.ErrOperationFailed when it was included but not applied.
type Provider interface {
	Name() string
	GetOperationBlockLevel(ctx context.Context, hash string) (int64, error)
	GetHeadLevel(ctx context.Context) (int64, error)
	GetContractCalls(ctx context.Context, contract string, f Filters) ([]IndexerTransaction, error)
	GetTokenBalance(ctx context.Context, contract, account string, f Filters) (decimal.Decimal, error)
}

var errNotFound = errors.New("indexer: not found")

// httpSource is the rate limited JSON transport shared by providers.
type httpSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newHTTPSource(name, baseURL string, rps float64, burst int) httpSource {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return httpSource{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s httpSource) Name() string { return s.name }

func (s httpSource) get(ctx context.Context, path string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", s.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request: %w", s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", s.name, err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http status %d: %s", s.name, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", s.name, err)
	}
	return nil
}

func operationNotFound(name, hash string) error {
	return errno.ErrOperationNotFound.Withf("%s: operation %s not found", name, hash)
}

func operationFailed(name, hash, status string) error {
	return errno.ErrOperationFailed.Withf("%s: operation %s has status %s", name, hash, status)
}
