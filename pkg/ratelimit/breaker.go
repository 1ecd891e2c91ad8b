package ratelimit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const breakerFailureThreshold = 5

// BreakerStore wraps a Store with a circuit breaker so a dead counter store
// fails fast instead of adding a network timeout to every request. While the
// breaker is open, Consume returns an error immediately and the limiter
// applies its configured failure policy.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerStore(inner Store, logger *logrus.Logger) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        "ratelimit-store",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("rate limit store breaker state changed")
		},
	}
	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (s *BreakerStore) Consume(ctx context.Context, clientID string, class Class, quota Quota) (Decision, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Consume(ctx, clientID, class, quota)
	})
	if err != nil {
		return Decision{}, err
	}
	decision, ok := res.(Decision)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected breaker result type %T", res)
	}
	return decision, nil
}
