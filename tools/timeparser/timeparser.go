package timeparser

import (
	"fmt"
	"time"
)

// ParseTimestamp attempts to parse a timestamp with the formats upstream
// systems and operators use
func ParseTimestamp(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,      // Standard RFC3339
		"2006-01-02 15:04:05", // YYYY-MM-DD HH:mm:ss
		"02.01.2006 15:04:05", // DD.MM.YYYY HH:mm:ss
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// IsWithinTolerance checks if t is within tolerance of the reference time
func IsWithinTolerance(t, reference time.Time, toleranceMinutes int) bool {
	diff := t.Sub(reference)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceMinutes)*time.Minute
}
