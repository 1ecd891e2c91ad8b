package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Class identifies a named rate-limit bucket with its own quota and window.
type Class string

const (
	ClassAuth    Class = "auth"
	ClassGeneral Class = "general"
)

// Quota is the fixed-window policy for a single class.
type Quota struct {
	Limit  int64
	Window time.Duration
}

// Decision is the outcome of consuming one unit against a class counter.
// ResetAt is the window boundary in epoch seconds; Retry-After is derived
// from it as max(0, ResetAt-now).
type Decision struct {
	Allowed     bool
	Limit       int64
	Remaining   int64
	ResetAt     int64
	Degraded    bool
	Unavailable bool
}

// RetryAfter returns the number of seconds until the window resets,
// clamped to zero.
func (d Decision) RetryAfter(now time.Time) int64 {
	secs := d.ResetAt - now.Unix()
	if secs < 0 {
		return 0
	}
	return secs
}

// Store is an atomic consume-and-read counter service keyed by
// (clientID, class). Implementations must guarantee that two concurrent
// Consume calls for the same key never observe the same post-increment
// count.
type Store interface {
	Consume(ctx context.Context, clientID string, class Class, quota Quota) (Decision, error)
}

type classSettings struct {
	Limit  int64  `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// QuotasFromSettings decodes per-class quota settings loaded from
// configuration. Both limit classes must be present; malformed settings
// are a startup error, never deferred to request time.
func QuotasFromSettings(settings map[string]map[string]interface{}) (map[Class]Quota, error) {
	quotas := make(map[Class]Quota, len(settings))
	for name, raw := range settings {
		var cs classSettings
		if err := mapstructure.Decode(raw, &cs); err != nil {
			return nil, fmt.Errorf("invalid limit settings for %s: %w", name, err)
		}
		if cs.Limit <= 0 {
			return nil, fmt.Errorf("limit class %s requires a positive 'limit' value", name)
		}
		if cs.Window == "" {
			return nil, fmt.Errorf("limit class %s requires a 'window' value", name)
		}
		window, err := time.ParseDuration(cs.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid window for %s: %w", name, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("limit class %s requires a positive window", name)
		}
		quotas[Class(name)] = Quota{Limit: cs.Limit, Window: window}
	}
	for _, required := range []Class{ClassAuth, ClassGeneral} {
		if _, ok := quotas[required]; !ok {
			return nil, fmt.Errorf("missing limit settings for class %q", required)
		}
	}
	return quotas, nil
}
