package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	infraProm "github.com/planora/gatekeeper/pkg/infra/prometheus"
)

// FailurePolicy selects what the limiter does when the counter store cannot
// be reached. There is no silent default: the policy is explicit configuration
// and every degraded evaluation is logged and metered.
type FailurePolicy string

const (
	// FailOpen admits the request and flags the decision as degraded.
	FailOpen FailurePolicy = "open"
	// FailClosed denies the request with an unavailable decision (503).
	FailClosed FailurePolicy = "closed"
	// FailLocal falls back to per-instance in-memory counters so coarse
	// limiting survives a store outage.
	FailLocal FailurePolicy = "local"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailOpen, FailClosed, FailLocal:
		return FailurePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want open, closed or local)", s)
	}
}

// Limiter owns the per-class quota policy and the failure policy; counter
// durability and concurrency control belong to the Store.
type Limiter struct {
	store        Store
	local        *MemoryStore
	quotas       map[Class]Quota
	policy       FailurePolicy
	logger       *logrus.Logger
	timeProvider func() time.Time
}

type LimiterOpts struct {
	TimeProvider func() time.Time
}

func NewLimiter(
	store Store,
	quotas map[Class]Quota,
	policy FailurePolicy,
	logger *logrus.Logger,
	opts *LimiterOpts,
) *Limiter {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Limiter{
		store:        store,
		local:        NewMemoryStore(&MemoryStoreOpts{TimeProvider: timeProvider}),
		quotas:       quotas,
		policy:       policy,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// RunSweeper evicts expired fallback windows at the given interval until ctx
// is done. Without it the fallback store grows by one counter per client and
// class seen during a store outage.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.local.Sweep(l.timeProvider())
		}
	}
}

// Check consumes one unit for the client in the given class. It never
// returns an error: store failures are absorbed by the configured failure
// policy and surfaced through the Degraded and Unavailable decision flags.
func (l *Limiter) Check(ctx context.Context, clientID string, class Class) Decision {
	quota, ok := l.quotas[class]
	if !ok {
		quota = l.quotas[ClassGeneral]
		class = ClassGeneral
	}

	decision, err := l.store.Consume(ctx, clientID, class, quota)
	if err == nil {
		return decision
	}

	infraProm.StoreFailures.WithLabelValues(string(l.policy)).Inc()
	l.logger.WithError(err).WithFields(logrus.Fields{
		"client": clientID,
		"class":  string(class),
		"policy": string(l.policy),
	}).Warn("rate limit store unreachable, applying failure policy")

	now := l.timeProvider()
	switch l.policy {
	case FailClosed:
		return Decision{
			Allowed:     false,
			Limit:       quota.Limit,
			ResetAt:     now.Add(quota.Window).Unix(),
			Degraded:    true,
			Unavailable: true,
		}
	case FailLocal:
		local, localErr := l.local.Consume(ctx, clientID, class, quota)
		if localErr != nil {
			// MemoryStore cannot fail today; keep the open posture if it ever does.
			break
		}
		local.Degraded = true
		return local
	}

	return Decision{
		Allowed:   true,
		Limit:     quota.Limit,
		Remaining: quota.Limit,
		ResetAt:   now.Add(quota.Window).Unix(),
		Degraded:  true,
	}
}
