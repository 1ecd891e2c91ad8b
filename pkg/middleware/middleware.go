package middleware

import "github.com/gofiber/fiber/v2"

type Middleware interface {
	Middleware() fiber.Handler
}

// Transport groups the gate middlewares in their fixed execution order:
// request id, client identity, auth signal, metrics, then the gate itself.
type Transport struct {
	RequestIDMiddleware  Middleware
	ClientIPMiddleware   Middleware
	AuthSignalMiddleware Middleware
	MetricsMiddleware    Middleware
	GateMiddleware       Middleware
}
