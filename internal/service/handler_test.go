package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/reconcile"
	"github.com/septivank/meter-reconciler/internal/validator"
)

type fakeRunner struct {
	requests []RunRequest
	err      error
}

func (f *fakeRunner) Run(_ context.Context, req RunRequest) (*RunResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &RunResult{RunID: uuid.New(), Report: &reconcile.Report{}}, nil
}

func newTestHandler(runner Runner) *RequestHandler {
	h := NewRequestHandler(runner, validator.NewValidator(10), zap.NewNop())
	h.now = func() time.Time { return testNow }
	return h
}

func TestHandleMessage_RunsValidRequest(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestHandler(runner)

	err := h.HandleMessage(context.Background(), []byte(`{"request_id":"req-1","site_id":42,"requested_at":"2025-12-29T10:25:00Z"}`))
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, "req-1", runner.requests[0].RequestID)
	require.NotNil(t, runner.requests[0].SiteID)
	assert.Equal(t, int64(42), *runner.requests[0].SiteID)
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	runner := &fakeRunner{}

	err := newTestHandler(runner).HandleMessage(context.Background(), []byte(`{not json`))
	assert.ErrorContains(t, err, "failed to unmarshal run request")
	assert.Empty(t, runner.requests)
}

func TestHandleMessage_StaleRequest(t *testing.T) {
	runner := &fakeRunner{}

	err := newTestHandler(runner).HandleMessage(context.Background(), []byte(`{"request_id":"req-1","requested_at":"2025-12-28T10:25:00Z"}`))
	assert.ErrorContains(t, err, "outside tolerance")
	assert.Empty(t, runner.requests)
}

func TestHandleMessage_RunFailure(t *testing.T) {
	runner := &fakeRunner{err: stageErr(StageAuthPrimary, errors.New("rejected"))}

	err := newTestHandler(runner).HandleMessage(context.Background(), []byte(`{"request_id":"req-1","requested_at":"2025-12-29T10:29:00Z"}`))
	var stageError *StageError
	require.ErrorAs(t, err, &stageError)
	assert.Equal(t, StageAuthPrimary, stageError.Stage)
}
