// Package reconcile merges primary-source meter records with telemetry from
// the secondary source
package reconcile

import (
	"math"
	"time"

	"github.com/septivank/meter-reconciler/internal/reading"
	"github.com/septivank/meter-reconciler/internal/serial"
)

// Scope identifies the secondary-source site a run reconciles against
type Scope struct {
	SiteID int64
}

// Outcome is the per-record diagnostic of a run, in input order
type Outcome struct {
	RecordID         int
	Service          string
	SerialNumber     string
	SerialNormalized string
	Matched          bool
	Value            string
	Kind             reading.MeterKind
}

// Report is the result of one reconciliation run
type Report struct {
	Records  []reading.MeterReading
	Outcomes []Outcome
	Matched  int
	SyncTime time.Time
}

// Total returns the number of reconciled records
func (r *Report) Total() int {
	return len(r.Records)
}

// Unmatched returns the number of records left on their primary values
func (r *Report) Unmatched() int {
	return len(r.Records) - r.Matched
}

// Engine reconciles record sets. It holds no state between runs and is safe
// for concurrent use
type Engine struct {
	now func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the wall clock used for update and sync timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a reconciliation engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile matches each record against the index by normalized serial and
// returns enriched copies. The input slice and its records are never modified.
//
// Every index entry is validated up front, whether or not a record refers to
// it: its key must equal both NormalizedSN and the normalized OriginalSN, as
// reading.IndexMeters produces. A hand-built index without those fields fails
// with a ContractViolationError
func (e *Engine) Reconcile(records []reading.MeterReading, index reading.SecondaryIndex, scope Scope) (*Report, error) {
	if err := validate(records, index); err != nil {
		return nil, err
	}

	runAt := e.now()
	report := &Report{
		Records:  make([]reading.MeterReading, 0, len(records)),
		Outcomes: make([]Outcome, 0, len(records)),
		SyncTime: runAt,
	}

	for _, in := range records {
		out := in.Clone()
		outcome := Outcome{
			RecordID:         out.ID,
			Service:          out.Service,
			SerialNumber:     out.SerialNumber,
			SerialNormalized: out.SerialNormalized,
		}

		if meter, ok := index[out.SerialNormalized]; ok {
			out.CurrentReading = apply(out, meter, runAt)
			outcome.Matched = true
			outcome.Kind = meter.Type.Kind()
			report.Matched++
		}
		outcome.Value = out.CurrentReading.Value

		out.Metadata = syncMetadata(out, scope, runAt)
		report.Records = append(report.Records, out)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report, nil
}

func apply(r reading.MeterReading, meter reading.SecondaryMeter, runAt time.Time) reading.CurrentReading {
	current := r.CurrentReading
	meterID := meter.MeterID
	updated := runAt

	current.Source = reading.SourceSecondary
	current.SecondaryMeterID = &meterID
	current.SecondaryType = meter.Type.Name
	current.SecondaryUnit = meter.Unit
	current.SecondaryState = meter.State
	current.UpdateTime = &updated
	current.Value, current.Tariffs = deriveValue(meter)
	current.MatchingInfo = &reading.MatchingInfo{
		PrimaryRaw:          r.SerialNumber,
		PrimaryNormalized:   r.SerialNormalized,
		SecondaryRaw:        meter.OriginalSN,
		SecondaryNormalized: meter.NormalizedSN,
	}

	return current
}

func syncMetadata(r reading.MeterReading, scope Scope, runAt time.Time) *reading.SyncMetadata {
	md := &reading.SyncMetadata{
		SecondarySync: r.Synced(),
		SyncTime:      runAt,
	}
	if md.SecondarySync {
		siteID := scope.SiteID
		md.SiteID = &siteID
	}
	return md
}

func validate(records []reading.MeterReading, index reading.SecondaryIndex) error {
	for _, r := range records {
		if !r.SerialConsistent() {
			return &ContractViolationError{Serial: r.SerialNumber, Reason: "normalized serial " + r.SerialNormalized + " does not match raw serial"}
		}
	}

	for key, m := range index {
		if key != m.NormalizedSN || key != serial.Normalize(m.OriginalSN) {
			return &ContractViolationError{Serial: m.OriginalSN, Reason: "index key " + key + " does not match meter serial"}
		}
		for _, v := range m.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ContractViolationError{Serial: m.OriginalSN, Reason: "non-finite telemetry value"}
			}
		}
	}

	return nil
}
