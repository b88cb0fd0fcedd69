package reading

import "github.com/septivank/meter-reconciler/internal/serial"

// TypeNumberMultiTariffElectricity is the secondary source's type number for
// electricity meters reporting T1/T2/T3 channels
const TypeNumberMultiTariffElectricity = 8

// MeterKind selects how a current value is derived from telemetry
type MeterKind int

const (
	// KindSingleChannel covers every type without dedicated handling,
	// including type numbers this build has never seen
	KindSingleChannel MeterKind = iota
	KindMultiTariffElectricity
)

func (k MeterKind) String() string {
	switch k {
	case KindMultiTariffElectricity:
		return "multi_tariff_electricity"
	default:
		return "single_channel"
	}
}

// MeterType is the secondary source's meter-type discriminator
type MeterType struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Kind maps the type number onto the closed set of derivation policies
func (t MeterType) Kind() MeterKind {
	switch t.Number {
	case TypeNumberMultiTariffElectricity:
		return KindMultiTariffElectricity
	default:
		return KindSingleChannel
	}
}

// SecondaryMeter is one meter as reported by the telemetry service
type SecondaryMeter struct {
	MeterID      int64     `json:"meter_id"`
	Type         MeterType `json:"type"`
	Unit         string    `json:"unit"`
	State        string    `json:"state"`
	Values       []float64 `json:"values"`
	OriginalSN   string    `json:"original_sn"`
	NormalizedSN string    `json:"normalized_sn"`
}

// SecondaryIndex maps normalized serials to secondary meters
type SecondaryIndex map[string]SecondaryMeter

// IndexMeters keys meters by normalized serial, filling NormalizedSN from
// OriginalSN. Meters with an empty serial are skipped. When two meters share a
// key the first one wins and the later ones are returned as duplicates
func IndexMeters(meters []SecondaryMeter) (SecondaryIndex, []SecondaryMeter) {
	index := make(SecondaryIndex, len(meters))
	var duplicates []SecondaryMeter

	for _, m := range meters {
		m.NormalizedSN = serial.Normalize(m.OriginalSN)
		if m.NormalizedSN == "" {
			continue
		}
		if _, exists := index[m.NormalizedSN]; exists {
			duplicates = append(duplicates, m)
			continue
		}
		index[m.NormalizedSN] = m
	}

	return index, duplicates
}
