package payment

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Breaker stops calling a failing authorizer for a while so checkouts fail
// fast instead of each waiting out the timeout. Declines do not count as failures.
type Breaker struct {
	next Authorizer
	cb   *gobreaker.CircuitBreaker[Result]
}

type BreakerSettings struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

func NewBreaker(next Authorizer, settings BreakerSettings, logger *zap.Logger) *Breaker {
	if settings.MaxConsecutiveFailures == 0 {
		settings.MaxConsecutiveFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:    "payment-authorizer",
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Authorize(ctx context.Context, req Request) (Result, error) {
	return b.cb.Execute(func() (Result, error) {
		return b.next.Authorize(ctx, req)
	})
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
