package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TzKT reads from a TzKT API (https://api.tzkt.io).
type TzKT struct {
	httpSource
}

var _ Provider = (*TzKT)(nil)

func NewTzKT(name, baseURL string, rps float64, burst int) *TzKT {
	return &TzKT{httpSource: newHTTPSource(name, baseURL, rps, burst)}
}

type tzktOperation struct {
	Hash      string    `json:"hash"`
	Level     int64     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Counter   int64     `json:"counter"`
	Amount    int64     `json:"amount"`
	Sender    struct {
		Address string `json:"address"`
	} `json:"sender"`
	Target struct {
		Address string `json:"address"`
	} `json:"target"`
	Parameter *struct {
		Entrypoint string          `json:"entrypoint"`
		Value      json.RawMessage `json:"value"`
	} `json:"parameter"`
}

func (t *TzKT) GetOperationBlockLevel(ctx context.Context, hash string) (int64, error) {
	var ops []tzktOperation
	err := t.get(ctx, "/v1/operations/"+url.PathEscape(hash), &ops)
	if errors.Is(err, errNotFound) || (err == nil && len(ops) == 0) {
		return 0, operationNotFound(t.name, hash)
	}
	if err != nil {
		return 0, err
	}
	for _, op := range ops {
		if op.Status != "" && op.Status != "applied" {
			return 0, operationFailed(t.name, hash, op.Status)
		}
	}
	return ops[0].Level, nil
}

func (t *TzKT) GetHeadLevel(ctx context.Context) (int64, error) {
	var head struct {
		Level int64 `json:"level"`
	}
	if err := t.get(ctx, "/v1/head", &head); err != nil {
		return 0, err
	}
	return head.Level, nil
}

func (t *TzKT) GetContractCalls(ctx context.Context, contract string, f Filters) ([]IndexerTransaction, error) {
	q := url.Values{}
	q.Set("target", contract)
	q.Set("limit", strconv.Itoa(f.limit()))
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Entrypoint != "" {
		q.Set("entrypoint", f.Entrypoint)
	}
	if f.Order == OrderAsc {
		q.Set("sort.asc", "id")
	} else {
		q.Set("sort.desc", "id")
	}

	var ops []tzktOperation
	err := t.get(ctx, "/v1/operations/transactions?"+q.Encode(), &ops)
	if errors.Is(err, errNotFound) {
		return []IndexerTransaction{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]IndexerTransaction, 0, len(ops))
	for _, op := range ops {
		tx := IndexerTransaction{
			Hash:      op.Hash,
			Level:     op.Level,
			Timestamp: op.Timestamp,
			Sender:    op.Sender.Address,
			Target:    op.Target.Address,
			Amount:    decimal.NewFromInt(op.Amount),
			Counter:   op.Counter,
			Status:    op.Status,
		}
		if op.Parameter != nil {
			tx.Entrypoint = op.Parameter.Entrypoint
			tx.Parameters = op.Parameter.Value
		}
		out = append(out, tx)
	}
	return out, nil
}

func (t *TzKT) GetTokenBalance(ctx context.Context, contract, account string, f Filters) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("token.contract", contract)
	q.Set("account", account)
	if f.TokenID != "" {
		q.Set("token.tokenId", f.TokenID)
	}

	var balances []struct {
		Balance string `json:"balance"`
	}
	err := t.get(ctx, "/v1/tokens/balances?"+q.Encode(), &balances)
	if errors.Is(err, errNotFound) || (err == nil && len(balances) == 0) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, b := range balances {
		v, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}
