package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/planora/gatekeeper/pkg/common"
	"github.com/planora/gatekeeper/pkg/routing"
)

// authSignalMiddleware reads the identity headers injected by the auth
// collaborator into an AuthSignal for the router. Credential verification
// happened upstream; an empty user header simply means unauthenticated.
type authSignalMiddleware struct{}

func NewAuthSignalMiddleware() Middleware {
	return &authSignalMiddleware{}
}

func (m *authSignalMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		signal := routing.AuthSignal{}
		if user := c.Get(common.AuthUserHeader); user != "" {
			signal.Authenticated = true
			signal.Role = routing.Role(c.Get(common.AuthRoleHeader))
		}
		c.Locals(common.AuthSignalContextKey, signal)
		return c.Next()
	}
}
