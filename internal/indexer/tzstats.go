package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tezos-gateway/pkg/errno"
)

// TzStats reads from a TzStats/TzPro explorer API.
type TzStats struct {
	httpSource
}

var _ Provider = (*TzStats)(nil)

func NewTzStats(name, baseURL string, rps float64, burst int) *TzStats {
	return &TzStats{httpSource: newHTTPSource(name, baseURL, rps, burst)}
}

type tzstatsOperation struct {
	Hash       string          `json:"hash"`
	Height     int64           `json:"height"`
	Time       time.Time       `json:"time"`
	Status     string          `json:"status"`
	Counter    int64           `json:"counter"`
	Sender     string          `json:"sender"`
	Receiver   string          `json:"receiver"`
	Volume     float64         `json:"volume"`
	Entrypoint string          `json:"entrypoint"`
	Parameters json.RawMessage `json:"parameters"`
}

func (t *TzStats) GetOperationBlockLevel(ctx context.Context, hash string) (int64, error) {
	var ops []tzstatsOperation
	err := t.get(ctx, "/explorer/op/"+url.PathEscape(hash), &ops)
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
	return ops[0].Height, nil
}

func (t *TzStats) GetHeadLevel(ctx context.Context) (int64, error) {
	var tip struct {
		Height int64 `json:"height"`
	}
	if err := t.get(ctx, "/explorer/tip", &tip); err != nil {
		return 0, err
	}
	return tip.Height, nil
}

func (t *TzStats) GetContractCalls(ctx context.Context, contract string, f Filters) ([]IndexerTransaction, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.limit()))
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Entrypoint != "" {
		q.Set("entrypoint", f.Entrypoint)
	}
	if f.Order == OrderAsc {
		q.Set("order", OrderAsc)
	} else {
		q.Set("order", OrderDesc)
	}

	var ops []tzstatsOperation
	err := t.get(ctx, "/explorer/contract/"+url.PathEscape(contract)+"/calls?"+q.Encode(), &ops)
	if errors.Is(err, errNotFound) {
		return []IndexerTransaction{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]IndexerTransaction, 0, len(ops))
	for _, op := range ops {
		out = append(out, IndexerTransaction{
			Hash:       op.Hash,
			Level:      op.Height,
			Timestamp:  op.Time,
			Sender:     op.Sender,
			Target:     op.Receiver,
			Entrypoint: op.Entrypoint,
			Parameters: op.Parameters,
			// volume is reported in tez
			Amount:  decimal.NewFromFloat(op.Volume).Shift(6).Round(0),
			Counter: op.Counter,
			Status:  op.Status,
		})
	}
	return out, nil
}

func (t *TzStats) GetTokenBalance(ctx context.Context, contract, account string, f Filters) (decimal.Decimal, error) {
	return decimal.Zero, errno.ErrUnsupported.Withf("%s: token balances are not supported", t.name)
}
