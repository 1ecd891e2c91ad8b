package origin

import (
	"fmt"
	"net/url"
)

// Policy is the immutable allow-list of request origins, built once at
// startup. Matching is exact on scheme+host+port: no wildcards and no suffix
// matching, so a captured subdomain never satisfies the policy.
type Policy struct {
	allowed map[string]struct{}
}

// NewPolicy validates and indexes the configured origins. A malformed entry
// is a startup error, never deferred to request time.
func NewPolicy(origins []string) (*Policy, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("allowed origins must contain at least one origin")
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		parsed, err := url.Parse(o)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid origin format: %q", o)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("origin must use http or https scheme: %q", o)
		}
		if parsed.Path != "" || parsed.RawQuery != "" {
			return nil, fmt.Errorf("origin must not carry a path or query: %q", o)
		}
		allowed[o] = struct{}{}
	}
	return &Policy{allowed: allowed}, nil
}

// Allows reports whether a request carrying the given Origin header may
// mutate state. An absent header is allowed: same-origin and non-browser
// clients omit it, and the session layer covers those.
func (p *Policy) Allows(originHeader string) bool {
	if originHeader == "" {
		return true
	}
	_, ok := p.allowed[originHeader]
	return ok
}
