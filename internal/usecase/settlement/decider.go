package settlement

import (
	"context"
	"math/rand/v2"
	"sync"

	"merchant-backend/internal/domain/transaction"
)

// Decider picks the terminal outcome of a settlement.
type Decider interface {
	Decide(ctx context.Context, event transaction.CreatedEvent) transaction.Status
}

type DeciderFunc func(ctx context.Context, event transaction.CreatedEvent) transaction.Status

func (f DeciderFunc) Decide(ctx context.Context, event transaction.CreatedEvent) transaction.Status {
	return f(ctx, event)
}

// Always returns a Decider with a fixed outcome.
func Always(status transaction.Status) Decider {
	return DeciderFunc(func(context.Context, transaction.CreatedEvent) transaction.Status {
		return status
	})
}

// RandomDecider succeeds with probability successRate regardless of the event.
type RandomDecider struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomDecider uses rng when given, the global source otherwise.
func NewRandomDecider(successRate float64, rng *rand.Rand) *RandomDecider {
	return &RandomDecider{successRate: successRate, rng: rng}
}

func (d *RandomDecider) Decide(context.Context, transaction.CreatedEvent) transaction.Status {
	if d.float64() < d.successRate {
		return transaction.StatusSuccess
	}
	return transaction.StatusFailed
}

func (d *RandomDecider) float64() float64 {
	if d.rng == nil {
		return rand.Float64()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64()
}
