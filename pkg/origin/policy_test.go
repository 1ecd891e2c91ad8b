package origin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planora/gatekeeper/pkg/origin"
)

func TestNewPolicy_RejectsMalformedOrigins(t *testing.T) {
	cases := map[string][]string{
		"empty list":      {},
		"no scheme":       {"app.example.com"},
		"bad scheme":      {"ftp://app.example.com"},
		"trailing path":   {"https://app.example.com/login"},
		"query component": {"https://app.example.com?x=1"},
		"unparseable":     {"https://%zz"},
	}

	for name, origins := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := origin.NewPolicy(origins)
			assert.Error(t, err)
		})
	}
}

func TestPolicy_Allows(t *testing.T) {
	policy, err := origin.NewPolicy([]string{
		"https://app.example.com",
		"http://localhost:3000",
	})
	require.NoError(t, err)

	// Absent header covers same-origin and non-browser requests.
	assert.True(t, policy.Allows(""))

	assert.True(t, policy.Allows("https://app.example.com"))
	assert.True(t, policy.Allows("http://localhost:3000"))

	// Exact matching only: scheme, host and port all count.
	assert.False(t, policy.Allows("http://app.example.com"))
	assert.False(t, policy.Allows("https://app.example.com:8443"))
	assert.False(t, policy.Allows("https://evil.app.example.com"))
	assert.False(t, policy.Allows("https://app.example.com.evil.net"))
	assert.False(t, policy.Allows("null"))
}
