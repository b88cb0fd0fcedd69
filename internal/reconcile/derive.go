package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/septivank/meter-reconciler/internal/reading"
)

// ZeroValue is reported for single-channel meters without any telemetry values
const ZeroValue = "0.00"

// multiTariffChannels is how many leading values are exposed as named tariffs
const multiTariffChannels = 3

var tariffLabels = [multiTariffChannels]string{reading.TariffT1, reading.TariffT2, reading.TariffT3}

// deriveValue computes the current value, and tariffs where applicable, for a
// secondary meter. Values are rounded half away from zero from their shortest
// decimal representation
func deriveValue(m reading.SecondaryMeter) (string, map[string]string) {
	switch m.Type.Kind() {
	case reading.KindMultiTariffElectricity:
		// Channels past T3 count toward the total but get no label
		total := decimal.Zero
		for _, v := range m.Values {
			total = total.Add(decimal.NewFromFloat(v))
		}
		if len(m.Values) < multiTariffChannels {
			return formatDecimal(total), nil
		}

		tariffs := make(map[string]string, multiTariffChannels)
		for i, label := range tariffLabels {
			tariffs[label] = formatValue(m.Values[i])
		}
		return formatDecimal(total), tariffs

	default:
		// Single-channel and unrecognized type numbers report the last value
		return lastValue(m.Values), nil
	}
}

func lastValue(values []float64) string {
	if len(values) == 0 {
		return ZeroValue
	}
	return formatValue(values[len(values)-1])
}

func formatValue(v float64) string {
	return formatDecimal(decimal.NewFromFloat(v))
}

func formatDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}
