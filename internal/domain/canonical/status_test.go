package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

func TestMapStatus(t *testing.T) {
	table := map[string]canonical.Status{
		"approved": canonical.StatusPaid,
		"pending":  canonical.StatusPending,
		"rejected": canonical.StatusRejected,
	}

	tests := []struct {
		name     string
		raw      string
		expected canonical.Status
	}{
		{"mapped status", "approved", canonical.StatusPaid},
		{"mapped status with whitespace", "  pending ", canonical.StatusPending},
		{"mapped status uppercase input", "REJECTED", canonical.StatusRejected},
		{"unmapped status passes through uppercased", "waiting_gateway", canonical.Status("WAITING_GATEWAY")},
		{"empty raw status", "", canonical.Status("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, canonical.MapStatus(tt.raw, table))
		})
	}
}

func TestStatusKnown(t *testing.T) {
	assert.True(t, canonical.StatusPaid.Known())
	assert.True(t, canonical.StatusChargedBack.Known())
	assert.True(t, canonical.StatusUpdated.Known())
	assert.False(t, canonical.Status("WAITING_GATEWAY").Known())
	assert.False(t, canonical.Status("").Known())
}
