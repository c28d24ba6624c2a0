package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmissionHandler is the evidence intake endpoint. The portal's full
// submission pipeline (document storage, PDF processing) lives elsewhere;
// this handler acknowledges the intake so the abuse-prevention path in front
// of it is exercised end to end.
type SubmissionHandler struct {
	logger *zap.Logger
}

// NewSubmissionHandler creates a submission handler.
func NewSubmissionHandler(logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{logger: logger}
}

// Submit accepts one evidence submission.
func (h *SubmissionHandler) Submit(ctx context.Context, req *SubmitEvidenceRequest) (*SubmitEvidenceResponse, error) {
	meta := RequestMetaFromContext(ctx)

	resp := &SubmitEvidenceResponse{}
	resp.Body.ID = uuid.NewString()
	resp.Body.CaseID = req.Body.CaseID
	resp.Body.ReceivedAt = time.Now().UTC()

	h.logger.Info("evidence submission accepted",
		zap.String("id", resp.Body.ID),
		zap.String("caseId", req.Body.CaseID),
		zap.String("clientIp", meta.ClientIP),
	)

	return resp, nil
}
