package anomaly

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/septivank/meter-reconciler/internal/reading"
)

// Finding describes a reconciled value that looks wrong next to the last
// official reading
type Finding struct {
	RecordID     int
	SerialNumber string
	Service      string
	Reason       string
}

// Detector handles anomaly detection with a configurable spike threshold
type Detector struct {
	spikeThreshold decimal.Decimal
}

// NewDetector creates a new anomaly detector with the specified threshold
func NewDetector(spikeThreshold float64) *Detector {
	return &Detector{
		spikeThreshold: decimal.NewFromFloat(spikeThreshold),
	}
}

// Inspect checks every record whose current value came from the secondary
// source. Records are never modified
func (d *Detector) Inspect(records []reading.MeterReading) []Finding {
	var findings []Finding
	for _, r := range records {
		if !r.Synced() {
			continue
		}
		if isAnomaly, reason := d.DetectAnomaly(r.CurrentReading.Value, r.LastReading.Value); isAnomaly {
			findings = append(findings, Finding{
				RecordID:     r.ID,
				SerialNumber: r.SerialNumber,
				Service:      r.Service,
				Reason:       reason,
			})
		}
	}
	return findings
}

// DetectAnomaly compares a cumulative meter value with the last recorded one.
// Unparseable values are not reported
func (d *Detector) DetectAnomaly(current, last string) (bool, string) {
	cur, err := parseValue(current)
	if err != nil {
		return false, ""
	}
	prev, err := parseValue(last)
	if err != nil {
		return false, ""
	}

	if cur.IsNegative() {
		return true, "negative value"
	}

	// Cumulative counters never go backwards
	if cur.LessThan(prev) {
		return true, fmt.Sprintf("value %s is below last recorded %s", cur.StringFixed(2), prev.StringFixed(2))
	}

	if prev.IsPositive() && cur.GreaterThan(prev.Mul(d.spikeThreshold)) {
		return true, fmt.Sprintf("sudden spike detected: value %s exceeds %sx last recorded %s",
			cur.StringFixed(2), d.spikeThreshold.String(), prev.StringFixed(2))
	}

	return false, ""
}

// parseValue accepts both '.' and ',' as the decimal separator
func parseValue(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return decimal.NewFromString(s)
}
