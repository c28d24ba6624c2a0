package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casevault/rateguard/internal/middleware"
	"github.com/casevault/rateguard/internal/ratelimit"
	"github.com/casevault/rateguard/internal/store"
)

const (
	testHostAddr  = "192.168.1.1:12345"
	testUserAgent = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

func defaultLimits() ratelimit.Config {
	return ratelimit.Config{
		Window:        time.Minute,
		MaxHits:       2,
		BlockDuration: 5 * time.Minute,
	}
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers    map[string]string
	setHeaders map[string]string
	host       string
	written    []byte
	statusCode int
	method     string
	operation  *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:    make(map[string]string),
		setHeaders: make(map[string]string),
		method:     "POST",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return m.host }
func (m *mockHumaContext) RemoteAddr() string                    { return m.host }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(name, value string)   { m.setHeaders[name] = value }
func (m *mockHumaContext) SetHeader(name, value string)      { m.setHeaders[name] = value }
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

func newRequestCtx() *mockHumaContext {
	ctx := newMockHumaContext()
	ctx.host = testHostAddr
	ctx.headers["User-Agent"] = testUserAgent
	ctx.operation = &huma.Operation{Path: "/submissions"}

	return ctx
}

func newTestMiddleware(t *testing.T, cfg ratelimit.Config) func(huma.Context, func(huma.Context)) {
	t.Helper()

	limiter := ratelimit.NewLimiter(store.NewRateLimitMemoryStore(), ratelimit.SystemClock{}, nil, zap.NewNop())

	return middleware.RateLimiter(newTestAPI(), limiter, cfg, zap.NewNop())
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		mw := newTestMiddleware(t, defaultLimits())

		for range defaultLimits().MaxHits {
			ctx := newRequestCtx()
			nextCalled := false

			mw(ctx, func(_ huma.Context) {
				nextCalled = true
			})

			assert.True(t, nextCalled)
		}
	})

	t.Run("sets the remaining header on allowed requests", func(t *testing.T) {
		mw := newTestMiddleware(t, defaultLimits())

		ctx := newRequestCtx()
		mw(ctx, func(_ huma.Context) {})

		assert.Equal(t, "1", ctx.setHeaders["X-RateLimit-Remaining"])
	})

	t.Run("returns 429 with Retry-After once the limit is crossed", func(t *testing.T) {
		mw := newTestMiddleware(t, defaultLimits())

		for range defaultLimits().MaxHits {
			mw(newRequestCtx(), func(_ huma.Context) {})
		}

		ctx := newRequestCtx()
		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled, "next should not be called when rate limited")
		assert.Equal(t, 429, ctx.statusCode)
		assert.Equal(t, "300", ctx.setHeaders["Retry-After"])
		assert.Contains(t, string(ctx.written), "rate limit exceeded")
	})

	t.Run("partitions by User-Agent", func(t *testing.T) {
		cfg := defaultLimits()
		cfg.MaxHits = 1

		mw := newTestMiddleware(t, cfg)

		mw(newRequestCtx(), func(_ huma.Context) {})

		other := newRequestCtx()
		other.headers["User-Agent"] = "DifferentAgent/2.0"

		nextCalled := false

		mw(other, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled, "a different client identity has its own budget")
	})

	t.Run("partitions by operation path", func(t *testing.T) {
		cfg := defaultLimits()
		cfg.MaxHits = 1

		mw := newTestMiddleware(t, cfg)

		first := newRequestCtx()
		first.operation = &huma.Operation{Path: "/submissions"}
		mw(first, func(_ huma.Context) {})

		second := newRequestCtx()
		second.operation = &huma.Operation{Path: "/other"}

		nextCalled := false

		mw(second, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled, "another action has its own budget")
	})
}

func TestRateLimiter_EndpointConfig(t *testing.T) {
	t.Run("skips disabled endpoints", func(t *testing.T) {
		cfg := defaultLimits()
		cfg.MaxHits = 1

		mw := newTestMiddleware(t, cfg)

		operation := &huma.Operation{
			Path: "/internal/cron/stats",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
			},
		}

		for range 5 {
			ctx := newRequestCtx()
			ctx.operation = operation

			nextCalled := false

			mw(ctx, func(_ huma.Context) {
				nextCalled = true
			})

			require.True(t, nextCalled)
		}
	})

	t.Run("metadata limits override the defaults", func(t *testing.T) {
		mw := newTestMiddleware(t, defaultLimits())

		operation := &huma.Operation{
			Path: "/submissions",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{
					Action: "submit-evidence",
					Config: ratelimit.Config{
						Window:        time.Minute,
						MaxHits:       1,
						BlockDuration: 5 * time.Minute,
					},
				},
			},
		}

		ctx := newRequestCtx()
		ctx.operation = operation
		mw(ctx, func(_ huma.Context) {})

		ctx = newRequestCtx()
		ctx.operation = operation

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled, "metadata limit of 1 beats the default of 2")
		assert.Equal(t, 429, ctx.statusCode)
	})
}

func TestRateLimiter_StoreFailure(t *testing.T) {
	newBrokenMiddleware := func(cfg ratelimit.Config) func(huma.Context, func(huma.Context)) {
		limiter := ratelimit.NewLimiter(unavailableStore{}, ratelimit.SystemClock{}, nil, zap.NewNop())

		return middleware.RateLimiter(newTestAPI(), limiter, cfg, zap.NewNop())
	}

	t.Run("fail-closed answers 503", func(t *testing.T) {
		mw := newBrokenMiddleware(defaultLimits())

		ctx := newRequestCtx()
		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled)
		assert.Equal(t, 503, ctx.statusCode)
	})

	t.Run("fail-open lets the request through", func(t *testing.T) {
		cfg := defaultLimits()
		cfg.FailOpen = true

		mw := newBrokenMiddleware(cfg)

		ctx := newRequestCtx()
		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled)
	})
}

type unavailableStore struct {
	ratelimit.Store
}

func (unavailableStore) RunAtomic(_ context.Context, _, _ string, _ func(tx ratelimit.Tx) error) error {
	return errors.New("connection refused")
}
