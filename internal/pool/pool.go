// Package pool load-balances calls over redundant external endpoints and
// retries transient failures against another member.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/monitor"
)

var ErrEmpty = errors.New("pool: no members configured")

type Member[T any] struct {
	Name   string
	Client T
}

// Pool is a fixed set of members. It is safe for concurrent use.
type Pool[T any] struct {
	name    string
	members []Member[T]
	intn    func(n int) int
}

func New[T any](name string, members ...Member[T]) (*Pool[T], error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	return &Pool[T]{name: name, members: members, intn: rand.IntN}, nil
}

func (p *Pool[T]) Name() string { return p.name }

func (p *Pool[T]) Members() []Member[T] { return p.members }

func (p *Pool[T]) PickRandom() Member[T] {
	return p.members[p.intn(len(p.members))]
}

func (p *Pool[T]) PickNamed(name string) (Member[T], bool) {
	for _, m := range p.members {
		if m.Name == name {
			return m, true
		}
	}
	return Member[T]{}, false
}

// Policy bounds Retry. Errors matched by IsDefinitive are returned at once
// and never retried. SurfaceLastError makes an exhausted budget return the
// last error instead of ok=false with a nil error.
type Policy struct {
	MaxAttempts      int
	IsDefinitive     func(error) bool
	SurfaceLastError bool
}

func (p Policy) definitive(err error) bool {
	return p.IsDefinitive != nil && p.IsDefinitive(err)
}

// ErrExhausted wraps the last error when SurfaceLastError is set.
var ErrExhausted = errors.New("pool: retry budget exhausted")

// Retry runs op against a randomly picked member until it succeeds, fails
// definitively, or MaxAttempts is spent. ok is false when no result could
// be produced.
func Retry[T, R any](ctx context.Context, p *Pool[T], policy Policy, op func(ctx context.Context, m Member[T]) (R, error)) (R, bool, error) {
	var zero R
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}

		m := p.PickRandom()
		logger.Info("Pool attempt",
			zap.String("pool", p.name),
			zap.String("member", m.Name),
			zap.Int("attempt", attempt),
		)

		res, err := op(ctx, m)
		if err == nil {
			monitor.PoolAttemptsTotal.WithLabelValues(p.name, m.Name, "ok").Inc()
			return res, true, nil
		}
		if policy.definitive(err) {
			monitor.PoolAttemptsTotal.WithLabelValues(p.name, m.Name, "definitive").Inc()
			return zero, false, err
		}

		monitor.PoolAttemptsTotal.WithLabelValues(p.name, m.Name, "failed").Inc()
		logger.Info("Pool attempt failed",
			zap.String("pool", p.name),
			zap.String("member", m.Name),
			zap.Int("remaining", attempts-attempt),
			zap.Error(err),
		)
		lastErr = err
	}

	logger.Error("Pool retries exhausted",
		zap.String("pool", p.name),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	if policy.SurfaceLastError {
		return zero, false, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
	}
	return zero, false, nil
}
