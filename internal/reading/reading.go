// Package reading holds the record shapes shared by the source clients and
// the reconciliation engine
package reading

import (
	"time"

	"github.com/septivank/meter-reconciler/internal/serial"
)

// Source names the system whose data is authoritative for a current value
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// DefaultInputFieldName is the form field the primary source uses for a new reading
const DefaultInputFieldName = "InputValCnt"

// Tariff labels exposed for multi-tariff electricity meters
const (
	TariffT1 = "T1"
	TariffT2 = "T2"
	TariffT3 = "T3"
)

// LastReading is the most recent officially recorded reading. Both fields
// are kept exactly as the primary source printed them
type LastReading struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// MatchingInfo records the serial strings involved in a successful match
type MatchingInfo struct {
	PrimaryRaw          string `json:"primary_raw"`
	PrimaryNormalized   string `json:"primary_normalized"`
	SecondaryRaw        string `json:"secondary_raw"`
	SecondaryNormalized string `json:"secondary_normalized"`
}

// CurrentReading is the working value for the run in progress
type CurrentReading struct {
	Value          string            `json:"value,omitempty"`
	Source         Source            `json:"source"`
	Date           string            `json:"date,omitempty"`
	InputFieldName string            `json:"input_field_name,omitempty"`
	Tariffs        map[string]string `json:"tariffs,omitempty"`

	SecondaryMeterID *int64 `json:"secondary_meter_id,omitempty"`
	SecondaryType    string `json:"secondary_type,omitempty"`
	SecondaryUnit    string `json:"secondary_unit,omitempty"`
	SecondaryState   string `json:"secondary_state,omitempty"`

	UpdateTime   *time.Time    `json:"update_time,omitempty"`
	MatchingInfo *MatchingInfo `json:"matching_info,omitempty"`
}

// SyncMetadata is the bookkeeping attached to every record after a run
type SyncMetadata struct {
	SecondarySync bool      `json:"secondary_sync"`
	SyncTime      time.Time `json:"sync_time"`
	SiteID        *int64    `json:"site_id,omitempty"`
}

// MeterReading is the unit of reconciliation
type MeterReading struct {
	ID                   int            `json:"id"`
	MeterReadingID       string         `json:"meter_reading_id"`
	Service              string         `json:"service"`
	SerialNumber         string         `json:"serial_number"`
	SerialNormalized     string         `json:"serial_normalized"`
	NextVerificationDate string         `json:"next_verification_date"`
	LastReading          LastReading    `json:"last_reading"`
	CurrentReading       CurrentReading `json:"current_reading"`
	AskueLink            string         `json:"askue_link,omitempty"`
	Metadata             *SyncMetadata  `json:"metadata,omitempty"`
}

// NewMeterReading builds a primary-sourced record with its normalized serial
// already derived
func NewMeterReading(id int, meterReadingID, service, serialNumber string) MeterReading {
	return MeterReading{
		ID:               id,
		MeterReadingID:   meterReadingID,
		Service:          service,
		SerialNumber:     serialNumber,
		SerialNormalized: serial.Normalize(serialNumber),
		CurrentReading: CurrentReading{
			Source:         SourcePrimary,
			InputFieldName: DefaultInputFieldName,
		},
	}
}

// SerialConsistent reports whether SerialNormalized matches SerialNumber
func (m MeterReading) SerialConsistent() bool {
	return m.SerialNormalized == serial.Normalize(m.SerialNumber)
}

// Synced reports whether the current value came from the secondary source
func (m MeterReading) Synced() bool {
	return m.CurrentReading.Source == SourceSecondary
}

// Clone returns a deep copy that shares no maps or pointers with m
func (m MeterReading) Clone() MeterReading {
	out := m
	out.CurrentReading = m.CurrentReading.clone()
	if m.Metadata != nil {
		md := *m.Metadata
		md.SiteID = cloneInt64(m.Metadata.SiteID)
		out.Metadata = &md
	}
	return out
}

func (c CurrentReading) clone() CurrentReading {
	out := c
	if c.Tariffs != nil {
		out.Tariffs = make(map[string]string, len(c.Tariffs))
		for k, v := range c.Tariffs {
			out.Tariffs[k] = v
		}
	}
	out.SecondaryMeterID = cloneInt64(c.SecondaryMeterID)
	if c.UpdateTime != nil {
		t := *c.UpdateTime
		out.UpdateTime = &t
	}
	if c.MatchingInfo != nil {
		mi := *c.MatchingInfo
		out.MatchingInfo = &mi
	}
	return out
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
