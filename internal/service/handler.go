package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/logging"
	"github.com/septivank/meter-reconciler/internal/mq"
	"github.com/septivank/meter-reconciler/internal/validator"
)

// Runner executes a reconciliation run
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// RequestHandler turns broker run requests into runs
type RequestHandler struct {
	runner    Runner
	validator *validator.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(runner Runner, v *validator.Validator, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		runner:    runner,
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleMessage validates a run request and runs it. Any returned error makes
// the consumer dead-letter the message
func (h *RequestHandler) HandleMessage(ctx context.Context, body []byte) error {
	var msg mq.RunRequestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal run request: %w", err)
	}

	reqLogger := logging.WithRequestID(h.logger, msg.RequestID)

	_, result := h.validator.ValidateRunRequest(validator.RunRequestData{
		RequestID:   msg.RequestID,
		SiteID:      msg.SiteID,
		RequestedAt: msg.RequestedAt,
	}, h.now())
	if !result.IsValid {
		reqLogger.Warn("rejecting run request", zap.String("reason", result.Reason))
		return fmt.Errorf("invalid run request %q: %s", msg.RequestID, result.Reason)
	}

	run, err := h.runner.Run(ctx, RunRequest{RequestID: msg.RequestID, SiteID: msg.SiteID})
	if err != nil {
		return err
	}

	reqLogger.Info("run request completed",
		zap.String("run_id", run.RunID.String()),
		zap.Int("matched", run.Report.Matched),
		zap.Int("total", run.Report.Total()),
	)
	return nil
}
