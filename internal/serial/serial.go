// Package serial derives the identity key used to match meters across sources
package serial

import "strings"

// Normalize returns the canonical form of a raw meter serial number.
// Surrounding whitespace and leading zeros are removed; an all-zero serial
// collapses to "0". Nothing else is touched, so alphanumeric serials survive
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if strings.Trim(s, "0") == "" {
		return "0"
	}

	if trimmed := strings.TrimLeft(s, "0"); trimmed != "" {
		return trimmed
	}
	return "0"
}
