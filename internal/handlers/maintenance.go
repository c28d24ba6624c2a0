package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/casevault/rateguard/internal/ratelimit"
)

// MaintenanceHandler exposes the cleanup trigger and the pair reset escape
// hatch. Both are called by operators or the external cron, never by portal
// clients.
type MaintenanceHandler struct {
	cleaner          *ratelimit.Cleaner
	store            ratelimit.Store
	defaultRetention time.Duration
	logger           *zap.Logger
}

// NewMaintenanceHandler creates a maintenance handler.
func NewMaintenanceHandler(
	cleaner *ratelimit.Cleaner,
	store ratelimit.Store,
	defaultRetention time.Duration,
	logger *zap.Logger,
) *MaintenanceHandler {
	return &MaintenanceHandler{
		cleaner:          cleaner,
		store:            store,
		defaultRetention: defaultRetention,
		logger:           logger,
	}
}

// Cleanup deletes hit records past the retention horizon. Retries are the
// caller's concern; a failure is reported once and not reattempted here.
func (h *MaintenanceHandler) Cleanup(ctx context.Context, req *CleanupRequest) (*CleanupResponse, error) {
	retention := h.defaultRetention
	if req.Days > 0 {
		retention = time.Duration(req.Days) * 24 * time.Hour
	}

	resp := &CleanupResponse{}

	deleted, err := h.cleaner.CleanupOldRecords(ctx, retention)
	if err != nil {
		h.logger.Error("cleanup failed", zap.Error(err))

		resp.Status = http.StatusInternalServerError
		resp.Body.Success = false
		resp.Body.Error = err.Error()

		return resp, nil
	}

	resp.Status = http.StatusOK
	resp.Body.Success = true
	resp.Body.Deleted = &deleted

	return resp, nil
}

// ResetPair clears the hits and block for one (key, action) pair. The
// violation audit trail is left intact.
func (h *MaintenanceHandler) ResetPair(ctx context.Context, req *ResetPairRequest) (*ResetPairResponse, error) {
	if err := h.store.ResetPair(ctx, req.Key, req.Action); err != nil {
		h.logger.Error("pair reset failed",
			zap.String("key", req.Key),
			zap.String("action", req.Action),
			zap.Error(err),
		)

		return nil, err
	}

	h.logger.Info("rate limit pair reset",
		zap.String("key", req.Key),
		zap.String("action", req.Action),
	)

	resp := &ResetPairResponse{}
	resp.Body.Success = true

	return resp, nil
}
