package serial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/septivank/meter-reconciler/internal/serial"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"all zeros", "000", "0"},
		{"single zero", "0", "0"},
		{"leading zeros", "00123", "123"},
		{"no leading zeros", "123", "123"},
		{"padded", "  0045  ", "45"},
		{"alphanumeric", "A00B", "A00B"},
		{"zeros before letters", "00A7", "A7"},
		{"inner zeros kept", "1002003", "1002003"},
		{"case preserved", "0ab-01", "ab-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serial.Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"", "0", "000", "00123", "  0045  ", "A00B", "0A"}

	for _, in := range inputs {
		once := serial.Normalize(in)
		assert.Equal(t, once, serial.Normalize(once), "input %q", in)
	}
}

func TestNormalize_SameMeter(t *testing.T) {
	assert.Equal(t, serial.Normalize("000123"), serial.Normalize("123"))
	assert.Equal(t, serial.Normalize("0000"), serial.Normalize("0"))
	assert.Equal(t, serial.Normalize(" 42"), serial.Normalize("0042 "))
	assert.NotEqual(t, serial.Normalize("123"), serial.Normalize("1230"))
	assert.NotEqual(t, serial.Normalize("a1"), serial.Normalize("A1"))
}
