package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/planora/gatekeeper/pkg/ratelimit"
	"github.com/planora/gatekeeper/pkg/types"
)

// Terminal responses are constructed here so the wire contract (status codes,
// error codes, header names) lives in one place.

func setRateLimitHeaders(c *fiber.Ctx, decision ratelimit.Decision) {
	c.Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt, 10))
}

func writeRateLimited(c *fiber.Ctx, decision ratelimit.Decision, class ratelimit.Class, now time.Time) error {
	message := types.MsgTooManyRequests
	if class == ratelimit.ClassAuth {
		message = types.MsgTooManyLoginAttempts
	}
	c.Set("Retry-After", strconv.FormatInt(decision.RetryAfter(now), 10))
	return c.Status(fiber.StatusTooManyRequests).JSON(types.ErrorResponse{
		Error:   types.ErrTooManyRequests,
		Message: message,
	})
}

func writeForbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(types.ErrorResponse{
		Error:   types.ErrForbidden,
		Message: message,
	})
}

func writeUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(types.ErrorResponse{
		Error:   types.ErrServiceUnavailable,
		Message: types.MsgStoreUnavailable,
	})
}
