package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/planora/gatekeeper/pkg/common"
)

type requestIDMiddleware struct {
	uuidProvider func() uuid.UUID
}

type RequestIDOpts struct {
	UuidProvider func() uuid.UUID
}

func NewRequestIDMiddleware(opts *RequestIDOpts) Middleware {
	uuidProvider := uuid.New
	if opts != nil && opts.UuidProvider != nil {
		uuidProvider = opts.UuidProvider
	}
	return &requestIDMiddleware{uuidProvider: uuidProvider}
}

func (m *requestIDMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(common.RequestIDHeader)
		if requestID == "" {
			requestID = m.uuidProvider().String()
		}
		c.Locals(common.RequestIDContextKey, requestID)

		// Echo the id after the chain: a proxied reply arrives with a fresh
		// header set and would drop anything written here beforehand.
		err := c.Next()
		c.Set(common.RequestIDHeader, requestID)
		return err
	}
}
