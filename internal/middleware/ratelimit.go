package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/casevault/rateguard/internal/ratelimit"
)

// RateLimiter returns a huma middleware enforcing the limiter on every
// operation. The identity key is a hash of client IP and User-Agent, and the
// action label comes from operation metadata (route template when absent).
//
// On a store failure the configured fail policy decides: fail-open lets the
// request through, fail-closed answers 503. The error is always logged.
func RateLimiter(
	api huma.API,
	limiter *ratelimit.Limiter,
	defaults ratelimit.Config,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		action := operationPath(ctx)
		cfg := defaults

		if epc := ratelimit.GetEndpointConfig(ctx); epc != nil {
			if epc.Disabled {
				next(ctx)

				return
			}

			if epc.Action != "" {
				action = epc.Action
			}

			if epc.Config.MaxHits > 0 {
				cfg = epc.Config
			}
		}

		key := clientKey(ctx)

		decision, err := limiter.Check(ctx.Context(), key, action, cfg)
		if err != nil {
			logger.Error("rate limit check failed",
				zap.String("action", action),
				zap.Error(err),
			)

			if decision.Allowed() {
				// Fail-open: wave the request through despite the outage.
				next(ctx)

				return
			}

			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "rate limiter unavailable")

			return
		}

		setRateLimitHeaders(ctx, decision)

		if !decision.Allowed() {
			logger.Warn("request denied by rate limiter",
				zap.String("action", action),
				zap.String("client_ip", clientIP(ctx)),
				zap.Duration("retry_after", decision.RetryAfter),
			)

			msg := fmt.Sprintf("rate limit exceeded for %s, retry in %s", action, decision.RetryAfter.Round(time.Second))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)

			return
		}

		next(ctx)
	}
}

func setRateLimitHeaders(ctx huma.Context, decision ratelimit.Decision) {
	if decision.Allowed() && decision.Remaining >= 0 {
		ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	}

	if decision.Outcome == ratelimit.Denied && decision.RetryAfter > 0 {
		// Round up so clients never retry before the block expires.
		seconds := int64((decision.RetryAfter + time.Second - 1) / time.Second)
		ctx.SetHeader("Retry-After", strconv.FormatInt(seconds, 10))
	}
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ctx.URL().Path
}

// clientKey hashes IP and User-Agent into the identity key partitioning rate
// limit state. Hashing keeps raw addresses out of the hit table.
func clientKey(ctx huma.Context) string {
	hash := sha256.Sum256([]byte(clientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(hash[:])
}

func clientIP(ctx huma.Context) string {
	return extractClientIP(ctx)
}
