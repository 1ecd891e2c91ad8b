package routing

import (
	"net/url"
	"strings"
)

// Role is the role claim carried by the auth collaborator's signal. The gate
// never verifies credentials; it only consumes the claim.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// AuthSignal is the per-request authentication input injected upstream of
// the gate. It is treated as opaque and never mutated.
type AuthSignal struct {
	Authenticated bool
	Role          Role
}

// Kind enumerates the router's terminal and non-terminal outcomes.
type Kind int

const (
	Continue Kind = iota
	RedirectToLogin
	RedirectAway
	RejectForbidden
)

// Decision is the routing outcome for a single request. Location is set for
// the redirect kinds, Reason for rejections.
type Decision struct {
	Kind     Kind
	Location string
	Reason   string
}

// Config is the static path-classification table, immutable after startup.
// Matching is prefix-based and case-sensitive; the root path "/" is treated
// as an exact match so it does not swallow every path.
type Config struct {
	ExemptPrefixes    []string
	AuthPagePrefixes  []string
	ProtectedPrefixes []string
	AdminOnlyPrefixes []string
	LoginPath         string
	RootPath          string
}

type Router struct {
	cfg Config
}

func NewRouter(cfg Config) *Router {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}
	return &Router{cfg: cfg}
}

// Decide classifies the path against the static table, in order: exempt
// paths bypass everything, auth pages bounce authenticated users to the
// root, protected prefixes send unauthenticated users to login with the
// original path preserved, and anything else continues. The trailing
// default-allow is deliberate: the protected list is an allow-list of
// enforcement, not of access.
func (r *Router) Decide(path string, sig AuthSignal) Decision {
	if matchesAny(path, r.cfg.ExemptPrefixes) {
		return Decision{Kind: Continue}
	}

	if matchesAny(path, r.cfg.AuthPagePrefixes) {
		if sig.Authenticated {
			return Decision{Kind: RedirectAway, Location: r.cfg.RootPath}
		}
		return Decision{Kind: Continue}
	}

	if matchesAny(path, r.cfg.AdminOnlyPrefixes) {
		if !sig.Authenticated {
			return Decision{Kind: RedirectToLogin, Location: r.loginRedirect(path)}
		}
		if sig.Role != RoleAdmin {
			return Decision{Kind: RejectForbidden, Reason: "Administrator access required"}
		}
		return Decision{Kind: Continue}
	}

	if matchesAny(path, r.cfg.ProtectedPrefixes) {
		if !sig.Authenticated {
			return Decision{Kind: RedirectToLogin, Location: r.loginRedirect(path)}
		}
		return Decision{Kind: Continue}
	}

	return Decision{Kind: Continue}
}

// IsAuthPage reports whether the path belongs to the login/register surface.
// The gate uses it to pick the stricter rate-limit class for credential
// submissions.
func (r *Router) IsAuthPage(path string) bool {
	return matchesAny(path, r.cfg.AuthPagePrefixes)
}

func (r *Router) loginRedirect(path string) string {
	return r.cfg.LoginPath + "?callbackUrl=" + url.QueryEscape(path)
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
