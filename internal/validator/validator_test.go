package validator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/septivank/meter-reconciler/internal/validator"
)

const testToleranceMinutes = 5

var receivedAt = time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

func TestValidateRunRequest_Valid(t *testing.T) {
	v := validator.NewValidator(testToleranceMinutes)
	site := int64(4242)

	requestedAt, result := v.ValidateRunRequest(validator.RunRequestData{
		RequestID:   "req-1",
		SiteID:      &site,
		RequestedAt: "2025-12-29T10:30:00Z",
	}, receivedAt)

	assert.True(t, result.IsValid, result.Reason)
	assert.Equal(t, time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC), requestedAt)
}

func TestValidateRunRequest_NoSitePin(t *testing.T) {
	v := validator.NewValidator(testToleranceMinutes)

	_, result := v.ValidateRunRequest(validator.RunRequestData{
		RequestID:   "req-1",
		RequestedAt: "29.12.2025 10:31:00",
	}, receivedAt)

	assert.True(t, result.IsValid, result.Reason)
}

func TestValidateRunRequest_EmptyRequestID(t *testing.T) {
	v := validator.NewValidator(testToleranceMinutes)

	_, result := v.ValidateRunRequest(validator.RunRequestData{RequestedAt: "2025-12-29T10:30:00Z"}, receivedAt)

	assert.False(t, result.IsValid)
	assert.Equal(t, "empty request id", result.Reason)
}

func TestValidateRunRequest_InvalidSite(t *testing.T) {
	v := validator.NewValidator(testToleranceMinutes)
	site := int64(-3)

	_, result := v.ValidateRunRequest(validator.RunRequestData{
		RequestID:   "req-1",
		SiteID:      &site,
		RequestedAt: "2025-12-29T10:30:00Z",
	}, receivedAt)

	assert.False(t, result.IsValid)
	assert.Equal(t, "invalid site id -3", result.Reason)
}

func TestValidateRunRequest_BadTimestamp(t *testing.T) {
	v := validator.NewValidator(testToleranceMinutes)

	_, result := v.ValidateRunRequest(validator.RunRequestData{RequestID: "req-1", RequestedAt: "yesterday"}, receivedAt)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Reason, "invalid timestamp format")
}

func TestValidateRunRequest_Stale(t *testing.T) {
	v := validator.NewValidator(testToleranceMinutes)

	requestedAt, result := v.ValidateRunRequest(validator.RunRequestData{
		RequestID:   "req-1",
		RequestedAt: "2025-12-29T10:00:00Z",
	}, receivedAt)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Reason, "outside tolerance")
	assert.False(t, requestedAt.IsZero())
}
