package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planora/gatekeeper/pkg/middleware"
	"github.com/planora/gatekeeper/pkg/origin"
	"github.com/planora/gatekeeper/pkg/ratelimit"
	"github.com/planora/gatekeeper/pkg/routing"
)

type failingStore struct{}

func (failingStore) Consume(context.Context, string, ratelimit.Class, ratelimit.Quota) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("store unreachable")
}

func testGateQuotas() map[ratelimit.Class]ratelimit.Quota {
	return map[ratelimit.Class]ratelimit.Quota{
		ratelimit.ClassAuth:    {Limit: 5, Window: time.Minute},
		ratelimit.ClassGeneral: {Limit: 100, Window: time.Minute},
	}
}

func newGateApp(t *testing.T, store ratelimit.Store, quotas map[ratelimit.Class]ratelimit.Quota, policy ratelimit.FailurePolicy) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	limiter := ratelimit.NewLimiter(store, quotas, policy, logger, nil)

	originPolicy, err := origin.NewPolicy([]string{"https://app.planora.io"})
	require.NoError(t, err)

	router := routing.NewRouter(routing.Config{
		ExemptPrefixes:    []string{"/static/", "/favicon.ico", "/health"},
		AuthPagePrefixes:  []string{"/login", "/register"},
		ProtectedPrefixes: []string{"/", "/events", "/clients", "/tasks", "/templates", "/settings"},
		AdminOnlyPrefixes: []string{"/settings/team"},
		LoginPath:         "/login",
	})

	app := fiber.New()
	app.Use(middleware.NewRequestIDMiddleware(nil).Middleware())
	app.Use(middleware.NewClientIPMiddleware([]string{"X-Real-IP", "X-Forwarded-For"}).Middleware())
	app.Use(middleware.NewAuthSignalMiddleware().Middleware())
	app.Use(middleware.NewGateMiddleware(limiter, originPolicy, router, logger, nil).Middleware())
	app.All("/*", func(c *fiber.Ctx) error {
		return c.SendString("downstream")
	})
	return app
}

func TestGate_LoginQuotaScenario(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Real-IP", "203.0.113.7")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "login attempt %d should be forwarded", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.LessOrEqual(t, retryAfter, 60)
	assert.GreaterOrEqual(t, retryAfter, 0)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"error":"TooManyRequests","message":"Too many login attempts. Please wait before trying again."}`,
		string(body),
	)
}

func TestGate_AuthQuotaDoesNotStarveGeneralTraffic(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Real-IP", "203.0.113.7")
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	// The general class has its own counter for the same client.
	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_ProtectedPathRedirectsToLogin(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/events/42", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?callbackUrl=%2Fevents%2F42", resp.Header.Get("Location"))
}

func TestGate_AuthenticatedUserRedirectedAwayFromLogin(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("X-Auth-User", "u_81423")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestGate_DisallowedOriginRejectedOnAnyPath(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	for _, path := range []string{"/login", "/events/42", "/about"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Origin", "https://evil.example.net")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":"Forbidden","message":"Invalid request origin"}`, string(body), path)
	}
}

func TestGate_AbsentOriginNeverRejected(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_ReadsSkipOriginCheck(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_PassThroughCarriesRateLimitHeaders(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "downstream", string(body))
}

func TestGate_HeadersSurviveDownstreamHeaderReset(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen, logger, nil)
	originPolicy, err := origin.NewPolicy([]string{"https://app.planora.io"})
	require.NoError(t, err)
	router := routing.NewRouter(routing.Config{
		ProtectedPrefixes: []string{"/events"},
		LoginPath:         "/login",
	})

	// A proxied upstream reply rebuilds the response header block from
	// scratch; this downstream reproduces that.
	app := fiber.New()
	app.Use(middleware.NewRequestIDMiddleware(nil).Middleware())
	app.Use(middleware.NewClientIPMiddleware([]string{"X-Real-IP"}).Middleware())
	app.Use(middleware.NewAuthSignalMiddleware().Middleware())
	app.Use(middleware.NewGateMiddleware(limiter, originPolicy, router, logger, nil).Middleware())
	app.All("/*", func(c *fiber.Ctx) error {
		c.Response().Header.Reset()
		return c.SendString("downstream")
	})

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestGate_ClientsAreBucketedIndependently(t *testing.T) {
	quotas := map[ratelimit.Class]ratelimit.Quota{
		ratelimit.ClassAuth:    {Limit: 1, Window: time.Minute},
		ratelimit.ClassGeneral: {Limit: 1, Window: time.Minute},
	}
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), quotas, ratelimit.FailOpen)

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/about", nil)
		req.Header.Set("X-Real-IP", ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, ip)
	}
}

func TestGate_FailOpenAdmitsWhenStoreIsDown(t *testing.T) {
	app := newGateApp(t, failingStore{}, testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_FailClosedReturns503(t *testing.T) {
	app := newGateApp(t, failingStore{}, testGateQuotas(), ratelimit.FailClosed)

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"error":"ServiceUnavailable"`)
}

func TestGate_AdminPrefixRequiresAdminRole(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/settings/team", nil)
	req.Header.Set("X-Auth-User", "u_81423")
	req.Header.Set("X-Auth-Role", "member")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/settings/team", nil)
	req.Header.Set("X-Auth-User", "u_1")
	req.Header.Set("X-Auth-Role", "admin")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_ExemptPathsAreNeverRedirected(t *testing.T) {
	app := newGateApp(t, ratelimit.NewMemoryStore(nil), testGateQuotas(), ratelimit.FailOpen)

	req := httptest.NewRequest(http.MethodGet, "/static/app.css", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
