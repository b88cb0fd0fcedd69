package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// ReconciliationRun represents one run's bookkeeping in the database.
// Reconciled values are not stored
type ReconciliationRun struct {
	ID             uuid.UUID
	RequestID      *string
	SiteID         *int64
	Status         string
	FailedStage    *string
	ErrorMessage   *string
	TotalRecords   int
	MatchedRecords int
	AnomalyCount   int
	StartedAt      time.Time
	FinishedAt     time.Time
}
