package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/planora/gatekeeper/pkg/common"
	infraProm "github.com/planora/gatekeeper/pkg/infra/prometheus"
)

type metricsMiddleware struct {
	logger *logrus.Logger
}

func NewMetricsMiddleware(logger *logrus.Logger) Middleware {
	return &metricsMiddleware{logger: logger}
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		elapsed := time.Since(start)

		infraProm.RequestsTotal.WithLabelValues(c.Method(), strconv.Itoa(status)).Inc()
		infraProm.RequestLatency.WithLabelValues(outcomeLabel(status)).
			Observe(float64(elapsed.Milliseconds()))

		requestID, _ := c.Locals(common.RequestIDContextKey).(string)
		clientIP, _ := c.Locals(common.ClientIPContextKey).(string)
		m.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"client":     clientIP,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
		}).Info("request completed")

		return err
	}
}

func outcomeLabel(status int) string {
	switch {
	case status == fiber.StatusTooManyRequests:
		return "rate_limited"
	case status == fiber.StatusForbidden:
		return "forbidden"
	case status == fiber.StatusServiceUnavailable:
		return "unavailable"
	case status >= 300 && status < 400:
		return "redirected"
	default:
		return "forwarded"
	}
}
