package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/planora/gatekeeper/pkg/common"
)

// clientIPMiddleware resolves the client identity used to bucket rate-limit
// counters. The configured header list is the trusted-proxy precedence order;
// the first header carrying a value wins, with multi-hop values reduced to
// their first hop. Without any trusted header the remote address is used.
type clientIPMiddleware struct {
	trustedHeaders []string
}

func NewClientIPMiddleware(trustedHeaders []string) Middleware {
	return &clientIPMiddleware{trustedHeaders: trustedHeaders}
}

func (m *clientIPMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := ""
		for _, header := range m.trustedHeaders {
			if value := c.Get(header); value != "" {
				ip = firstHop(value)
				break
			}
		}
		if ip == "" {
			ip = c.IP()
		}
		c.Locals(common.ClientIPContextKey, ip)
		return c.Next()
	}
}

func firstHop(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}
