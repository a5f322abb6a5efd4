package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tezos-gateway/internal/pool"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/logger"
)

// IsDefinitive reports explorer answers that another explorer would repeat.
func IsDefinitive(err error) bool {
	return errors.Is(err, errno.ErrOperationNotFound) || errors.Is(err, errno.ErrOperationFailed)
}

// Pool is the IndexerPool: retrying, randomized access to explorers.
type Pool struct {
	members  *pool.Pool[Provider]
	attempts int
}

func NewPool(attempts int, providers ...Provider) (*Pool, error) {
	members := make([]pool.Member[Provider], 0, len(providers))
	for _, p := range providers {
		members = append(members, pool.Member[Provider]{Name: p.Name(), Client: p})
	}
	m, err := pool.New("indexer", members...)
	if err != nil {
		return nil, err
	}
	return &Pool{members: m, attempts: attempts}, nil
}

// NewProviders builds explorers from configuration.
func NewProviders(cfgs []config.IndexerConfig) ([]Provider, error) {
	out := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Kind {
		case "tzkt":
			out = append(out, NewTzKT(c.Name, c.URL, c.RPS, c.Burst))
		case "tzstats":
			out = append(out, NewTzStats(c.Name, c.URL, c.RPS, c.Burst))
		default:
			return nil, fmt.Errorf("indexer %s: unknown kind %q", c.Name, c.Kind)
		}
	}
	return out, nil
}

func (p *Pool) policy() pool.Policy {
	return pool.Policy{MaxAttempts: p.attempts, IsDefinitive: IsDefinitive}
}

func (p *Pool) PickNamed(name string) (Provider, bool) {
	m, ok := p.members.PickNamed(name)
	return m.Client, ok
}

// GetOperationBlockLevel returns ok=false when every attempt failed
// transiently. Definitive answers are returned as errors.
func (p *Pool) GetOperationBlockLevel(ctx context.Context, hash string) (int64, bool, error) {
	return pool.Retry(ctx, p.members, p.policy(), func(ctx context.Context, m pool.Member[Provider]) (int64, error) {
		return m.Client.GetOperationBlockLevel(ctx, hash)
	})
}

// IsConfirmed reports whether hash is buried under at least depth blocks.
// Both levels are read from the same explorer so they are consistent.
func (p *Pool) IsConfirmed(ctx context.Context, hash string, depth int64) (bool, error) {
	confirmed, ok, err := pool.Retry(ctx, p.members, p.policy(), func(ctx context.Context, m pool.Member[Provider]) (bool, error) {
		level, err := m.Client.GetOperationBlockLevel(ctx, hash)
		if err != nil {
			return false, err
		}
		head, err := m.Client.GetHeadLevel(ctx)
		if err != nil {
			return false, err
		}
		logger.Debug("Operation depth",
			zap.String("indexer", m.Name),
			zap.String("hash", hash),
			zap.Int64("level", level),
			zap.Int64("head", head),
		)
		return head-level >= depth, nil
	})
	if err != nil || !ok {
		return false, err
	}
	return confirmed, nil
}

func (p *Pool) GetContractCalls(ctx context.Context, contract string, f Filters) ([]IndexerTransaction, error) {
	txs, ok, err := pool.Retry(ctx, p.members, p.policy(), func(ctx context.Context, m pool.Member[Provider]) ([]IndexerTransaction, error) {
		return m.Client.GetContractCalls(ctx, contract, f)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errno.ErrIndexerUnavailable
	}
	return txs, nil
}

func (p *Pool) GetTokenBalance(ctx context.Context, contract, account string, f Filters) (decimal.Decimal, error) {
	balance, ok, err := pool.Retry(ctx, p.members, p.policy(), func(ctx context.Context, m pool.Member[Provider]) (decimal.Decimal, error) {
		return m.Client.GetTokenBalance(ctx, contract, account, f)
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, errno.ErrIndexerUnavailable
	}
	return balance, nil
}
