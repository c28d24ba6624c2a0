package handlers

import (
	"context"
	"time"

	"github.com/casevault/rateguard/internal/stats"
)

type requestMetaKey struct{}

// RequestMeta holds the request identity inputs captured by middleware.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// CleanupRequest is the request for the hit-record cleanup trigger.
type CleanupRequest struct {
	Days int `doc:"Retention horizon in days; 0 uses the configured default" example:"7" minimum:"0" query:"days"`
}

// CleanupResponse reports the cleanup outcome to the cron wrapper.
type CleanupResponse struct {
	Status int
	Body   struct {
		Success bool   `json:"success"`
		Deleted *int64 `json:"deleted,omitempty"`
		Error   string `json:"error,omitempty"`
	}
}

// ResetPairRequest identifies one (key, action) pair to clear.
type ResetPairRequest struct {
	Key    string `doc:"Identity key"  path:"key"`
	Action string `doc:"Action label"  path:"action"`
}

// ResetPairResponse confirms a pair reset.
type ResetPairResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// CronStatsRequest carries the cron caller's bearer credential.
type CronStatsRequest struct {
	Authorization string `doc:"Bearer token matched against the cron secret" header:"Authorization"`
}

// CronStatsResponse reports the statistics cache refresh result.
type CronStatsResponse struct {
	Status int
	Body   struct {
		Success           bool          `json:"success"`
		Error             string        `json:"error,omitempty"`
		PreviousUpdatedAt *time.Time    `json:"previousUpdatedAt,omitempty"`
		UpdatedAt         *time.Time    `json:"updatedAt,omitempty"`
		Counts            *stats.Counts `json:"counts,omitempty"`
	}
}

// SubmitEvidenceRequest is the portal's evidence intake request.
type SubmitEvidenceRequest struct {
	Body struct {
		CaseID      string `doc:"Case the evidence belongs to" example:"CASE-2024-0193" json:"caseId" minLength:"1"`
		Description string `doc:"Free-form description"        json:"description,omitempty"`
	}
}

// SubmitEvidenceResponse acknowledges an accepted submission.
type SubmitEvidenceResponse struct {
	Body struct {
		ID         string    `doc:"Submission id" json:"id"`
		CaseID     string    `json:"caseId"`
		ReceivedAt time.Time `json:"receivedAt"`
	}
}
