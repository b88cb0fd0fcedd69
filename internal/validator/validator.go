package validator

import (
	"fmt"
	"time"

	"github.com/septivank/meter-reconciler/tools/timeparser"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// RunRequestData represents a request to run a reconciliation
type RunRequestData struct {
	RequestID   string
	SiteID      *int64
	RequestedAt string
}

// Validator handles run request validation with configurable parameters
type Validator struct {
	toleranceMinutes int
}

// NewValidator creates a new validator with the specified tolerance
func NewValidator(toleranceMinutes int) *Validator {
	return &Validator{
		toleranceMinutes: toleranceMinutes,
	}
}

// ValidateRunRequest validates a run request received at receivedAt
func (v *Validator) ValidateRunRequest(req RunRequestData, receivedAt time.Time) (time.Time, ValidationResult) {
	result := ValidationResult{IsValid: true}

	if req.RequestID == "" {
		result.IsValid = false
		result.Reason = "empty request id"
		return time.Time{}, result
	}

	if req.SiteID != nil && *req.SiteID <= 0 {
		result.IsValid = false
		result.Reason = fmt.Sprintf("invalid site id %d", *req.SiteID)
		return time.Time{}, result
	}

	requestedAt, err := timeparser.ParseTimestamp(req.RequestedAt)
	if err != nil {
		result.IsValid = false
		result.Reason = fmt.Sprintf("invalid timestamp format: %v", err)
		return time.Time{}, result
	}

	// Stale requests were meant for a run that has already been superseded
	if !timeparser.IsWithinTolerance(requestedAt, receivedAt, v.toleranceMinutes) {
		result.IsValid = false
		result.Reason = fmt.Sprintf("timestamp outside tolerance window (±%d minutes)", v.toleranceMinutes)
		return requestedAt, result
	}

	return requestedAt, result
}
