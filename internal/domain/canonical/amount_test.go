package canonical_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

func TestAmountMinorUnits(t *testing.T) {
	tests := []struct {
		name         string
		raw          interface{}
		alreadyMinor bool
		expected     int64
		ok           bool
	}{
		{"major unit float", 10.50, false, 1050, true},
		{"major unit float with binary noise", 0.1 + 0.2, false, 30, true},
		{"minor unit float", float64(1050), true, 1050, true},
		{"major unit string", "99.90", false, 9990, true},
		{"major unit json number", json.Number("149.99"), false, 14999, true},
		{"minor unit int", 250, true, 250, true},
		{"empty string", "", false, 0, false},
		{"garbage string", "abc", false, 0, false},
		{"unsupported type", []string{"10"}, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cents, ok := canonical.AmountMinorUnits(tt.raw, tt.alreadyMinor)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, cents)
		})
	}
}
