package anomaly_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/septivank/meter-reconciler/internal/anomaly"
	"github.com/septivank/meter-reconciler/internal/reading"
)

const testSpikeThreshold = 3.0

func TestDetectAnomaly_NormalIncrease(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	isAnomaly, reason := detector.DetectAnomaly("125.40", "120.000")

	assert.False(t, isAnomaly)
	assert.Empty(t, reason)
}

func TestDetectAnomaly_Rollback(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	isAnomaly, reason := detector.DetectAnomaly("99.00", "120,5")

	assert.True(t, isAnomaly)
	assert.Equal(t, "value 99.00 is below last recorded 120.50", reason)
}

func TestDetectAnomaly_Spike(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	isAnomaly, reason := detector.DetectAnomaly("400.00", "100")

	assert.True(t, isAnomaly)
	assert.Contains(t, reason, "sudden spike detected")
}

func TestDetectAnomaly_ZeroLastReading(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	isAnomaly, _ := detector.DetectAnomaly("400.00", "0")

	assert.False(t, isAnomaly)
}

func TestDetectAnomaly_NegativeValue(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	isAnomaly, reason := detector.DetectAnomaly("-1.00", "-5")

	assert.True(t, isAnomaly)
	assert.Equal(t, "negative value", reason)
}

func TestDetectAnomaly_UnparseableSkipped(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	isAnomaly, _ := detector.DetectAnomaly("12.00", "")
	assert.False(t, isAnomaly)

	isAnomaly, _ = detector.DetectAnomaly("n/a", "10")
	assert.False(t, isAnomaly)
}

func TestInspect_OnlySyncedRecords(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold)

	synced := reading.NewMeterReading(1, "mr-1", "cold water", "12")
	synced.LastReading.Value = "50"
	synced.CurrentReading.Source = reading.SourceSecondary
	synced.CurrentReading.Value = "40.00"

	primaryOnly := reading.NewMeterReading(2, "mr-2", "hot water", "13")
	primaryOnly.LastReading.Value = "50"
	primaryOnly.CurrentReading.Value = "1"

	findings := detector.Inspect([]reading.MeterReading{synced, primaryOnly})

	require.Len(t, findings, 1)
	assert.Equal(t, 1, findings[0].RecordID)
	assert.Equal(t, "12", findings[0].SerialNumber)
	assert.Equal(t, "cold water", findings[0].Service)
}
