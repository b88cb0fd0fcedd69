package mq

import (
	"time"

	"github.com/septivank/meter-reconciler/internal/reading"
)

// RunRequestMessage asks the worker to run a reconciliation
type RunRequestMessage struct {
	RequestID   string `json:"request_id"`
	SiteID      *int64 `json:"site_id,omitempty"`
	RequestedAt string `json:"requested_at"`
}

// ReconciledReadingEvent carries one record after a run
type ReconciledReadingEvent struct {
	RunID   string               `json:"run_id"`
	SiteID  int64                `json:"site_id"`
	Reading reading.MeterReading `json:"reading"`
	Anomaly string               `json:"anomaly,omitempty"`
}

// RunCompletedEvent summarizes a finished run
type RunCompletedEvent struct {
	RunID     string    `json:"run_id"`
	RequestID string    `json:"request_id,omitempty"`
	SiteID    int64     `json:"site_id"`
	Total     int       `json:"total"`
	Matched   int       `json:"matched"`
	Unmatched int       `json:"unmatched"`
	Anomalies int       `json:"anomalies"`
	SyncTime  time.Time `json:"sync_time"`
}
