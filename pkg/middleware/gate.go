package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/planora/gatekeeper/pkg/common"
	infraProm "github.com/planora/gatekeeper/pkg/infra/prometheus"
	"github.com/planora/gatekeeper/pkg/origin"
	"github.com/planora/gatekeeper/pkg/ratelimit"
	"github.com/planora/gatekeeper/pkg/routing"
	"github.com/planora/gatekeeper/pkg/types"
)

// gateMiddleware is the per-request decision pipeline. Stage order is fixed:
// rate limit before origin check before routing, so an over-quota client is
// rejected before any further work. Terminal stages short-circuit; admitted
// requests continue to the proxy handler and pick up rate-limit headers on
// the way out.
type gateMiddleware struct {
	limiter      *ratelimit.Limiter
	origins      *origin.Policy
	router       *routing.Router
	logger       *logrus.Logger
	timeProvider func() time.Time
}

type GateOpts struct {
	TimeProvider func() time.Time
}

func NewGateMiddleware(
	limiter *ratelimit.Limiter,
	origins *origin.Policy,
	router *routing.Router,
	logger *logrus.Logger,
	opts *GateOpts,
) Middleware {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &gateMiddleware{
		limiter:      limiter,
		origins:      origins,
		router:       router,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

func (m *gateMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, _ := c.Locals(common.ClientIPContextKey).(string)
		if clientID == "" {
			clientID = c.IP()
		}
		path := c.Path()
		mutating := isMutating(c.Method())

		class := ratelimit.ClassGeneral
		if mutating && m.router.IsAuthPage(path) {
			class = ratelimit.ClassAuth
		}

		decision := m.limiter.Check(c.Context(), clientID, class)
		setRateLimitHeaders(c, decision)

		if decision.Unavailable {
			return writeUnavailable(c)
		}
		if !decision.Allowed {
			infraProm.RateLimitDenials.WithLabelValues(string(class)).Inc()
			m.logger.WithFields(logrus.Fields{
				"client": clientID,
				"class":  string(class),
				"path":   path,
			}).Info("request denied by rate limiter")
			return writeRateLimited(c, decision, class, m.timeProvider())
		}

		if mutating && !m.origins.Allows(c.Get(fiber.HeaderOrigin)) {
			m.logger.WithFields(logrus.Fields{
				"client": clientID,
				"origin": c.Get(fiber.HeaderOrigin),
				"path":   path,
			}).Warn("request rejected for disallowed origin")
			return writeForbidden(c, types.MsgInvalidOrigin)
		}

		signal, _ := c.Locals(common.AuthSignalContextKey).(routing.AuthSignal)
		route := m.router.Decide(path, signal)
		switch route.Kind {
		case routing.RedirectToLogin:
			infraProm.Redirects.WithLabelValues("login").Inc()
			return c.Redirect(route.Location, fiber.StatusFound)
		case routing.RedirectAway:
			infraProm.Redirects.WithLabelValues("away").Inc()
			return c.Redirect(route.Location, fiber.StatusFound)
		case routing.RejectForbidden:
			return writeForbidden(c, route.Reason)
		}

		// The proxy handler hands c.Response() to the upstream client, which
		// resets the stored headers before parsing the upstream reply. Apply
		// the rate limit headers again once the chain has returned so they
		// survive forwarding.
		err := c.Next()
		setRateLimitHeaders(c, decision)
		return err
	}
}

func isMutating(method string) bool {
	switch method {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		return true
	}
	return false
}
