package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/casevault/rateguard/internal/stats"
)

// CronStatsHandler refreshes the statistics cache on behalf of the external
// cron. The caller authenticates with a bearer token matched against the
// secret loaded at startup; a missing secret is a deployment mistake and is
// reported as a server error, not an auth failure.
type CronStatsHandler struct {
	service *stats.Service
	secret  string
	logger  *zap.Logger
}

// NewCronStatsHandler creates the cron stats handler. An empty secret makes
// every call fail with a configuration error.
func NewCronStatsHandler(service *stats.Service, secret string, logger *zap.Logger) *CronStatsHandler {
	return &CronStatsHandler{
		service: service,
		secret:  secret,
		logger:  logger,
	}
}

// Refresh validates the caller and refreshes the cache, reporting the cache
// timestamp before and after plus the fresh aggregates.
func (h *CronStatsHandler) Refresh(ctx context.Context, req *CronStatsRequest) (*CronStatsResponse, error) {
	resp := &CronStatsResponse{}

	if h.secret == "" {
		h.logger.Error("cron stats refresh rejected",
			zap.Error(&ConfigurationError{Name: "CRON_AUTH_KEY"}),
		)

		resp.Status = http.StatusInternalServerError
		resp.Body.Error = "cron authorization is not configured"

		return resp, nil
	}

	token, ok := strings.CutPrefix(req.Authorization, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		h.logger.Warn("cron stats refresh rejected",
			zap.Error(&AuthorizationError{Reason: "bearer token mismatch"}),
		)

		resp.Status = http.StatusUnauthorized
		resp.Body.Error = "invalid authorization token"

		return resp, nil
	}

	previous, err := h.service.LastUpdated(ctx)

	var previousAt *time.Time

	switch {
	case err == nil:
		previousAt = &previous
	case errors.Is(err, stats.ErrCacheMiss):
		// First refresh; nothing cached yet.
	default:
		h.logger.Error("stats cache read failed", zap.Error(err))

		resp.Status = http.StatusServiceUnavailable
		resp.Body.Error = "statistics cache unavailable"

		return resp, nil
	}

	snap, err := h.service.Refresh(ctx)
	if err != nil {
		h.logger.Error("stats refresh failed", zap.Error(err))

		resp.Status = http.StatusServiceUnavailable
		resp.Body.Error = "statistics refresh failed"

		return resp, nil
	}

	resp.Status = http.StatusOK
	resp.Body.Success = true
	resp.Body.UpdatedAt = &snap.UpdatedAt
	resp.Body.Counts = &snap.Counts
	resp.Body.PreviousUpdatedAt = previousAt

	return resp, nil
}
