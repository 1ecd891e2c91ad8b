package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planora/gatekeeper/pkg/ratelimit"
)

func TestBreakerStore_PassesThroughHealthyStore(t *testing.T) {
	store := ratelimit.NewBreakerStore(ratelimit.NewMemoryStore(nil), logrus.New())
	quota := ratelimit.Quota{Limit: 2, Window: time.Minute}

	decision, err := store.Consume(context.Background(), "10.0.0.1", ratelimit.ClassGeneral, quota)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Remaining)
}

func TestBreakerStore_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &failingStore{}
	store := ratelimit.NewBreakerStore(inner, logrus.New())
	quota := ratelimit.Quota{Limit: 2, Window: time.Minute}

	for i := 0; i < 5; i++ {
		_, err := store.Consume(context.Background(), "10.0.0.1", ratelimit.ClassGeneral, quota)
		assert.Error(t, err)
	}
	assert.Equal(t, 5, inner.calls)

	// Open breaker short-circuits without touching the inner store.
	_, err := store.Consume(context.Background(), "10.0.0.1", ratelimit.ClassGeneral, quota)
	assert.Error(t, err)
	assert.Equal(t, 5, inner.calls)
}
