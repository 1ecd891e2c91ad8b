package server

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/planora/gatekeeper/pkg/config"
	"github.com/planora/gatekeeper/pkg/middleware"
)

const HealthPath = "/health"

type (
	GateServerDI struct {
		Config              *config.Config
		Logger              *logrus.Logger
		MiddlewareTransport middleware.Transport
	}
	// GateServer runs the decision pipeline in front of the downstream app:
	// every admitted request is reverse-proxied to the configured upstream,
	// unmodified.
	GateServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		upstream            string
	}
)

func NewGateServer(di GateServerDI) *GateServer {
	s := &GateServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		upstream:            strings.TrimSuffix(di.Config.Upstream.URL, "/"),
	}
	s.setupMetricsEndpoint()
	return s
}

func (s *GateServer) registerRoutes() {
	s.setupHealthCheck()

	s.router.Use(
		recover.New(),
		s.middlewareTransport.RequestIDMiddleware.Middleware(),
		s.middlewareTransport.ClientIPMiddleware.Middleware(),
		s.middlewareTransport.AuthSignalMiddleware.Middleware(),
		s.middlewareTransport.MetricsMiddleware.Middleware(),
		s.middlewareTransport.GateMiddleware.Middleware(),
		s.forwardDownstream,
	)
}

func (s *GateServer) Run() error {
	s.registerRoutes()

	addr := fmt.Sprintf(":%d", s.config.Server.ProxyPort)
	s.logger.WithField("addr", addr).Info("starting gate server")
	return s.router.Listen(addr)
}

func (s *GateServer) Shutdown() error {
	return s.router.Shutdown()
}

func (s *GateServer) forwardDownstream(c *fiber.Ctx) error {
	if err := proxy.Do(c, s.upstream+c.OriginalURL()); err != nil {
		s.logger.WithError(err).WithField("path", c.Path()).Error("downstream request failed")
		return fiber.ErrBadGateway
	}
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
