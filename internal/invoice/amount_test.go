package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"plain", "262.50", 262.50, true},
		{"thousands separator", "1,262.50", 1262.50, true},
		{"currency prefix", "AED 12.50", 12.50, true},
		{"integer", "10", 10, true},
		{"empty", "", 0, false},
		{"letters only", "n/a", 0, false},
		{"two dots", "1.2.3", 0, false},
		{"sign dropped", "-5.00", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAmountsBalance(t *testing.T) {
	assert.True(t, AmountsBalance("250.00", "12.50", "262.50"))
	assert.True(t, AmountsBalance("250.00", "12.50", "262.51"))
	assert.False(t, AmountsBalance("250.00", "12.50", "265.00"))
	assert.True(t, AmountsBalance("", "12.50", "265.00"))
}

func TestTotalsIsEmpty(t *testing.T) {
	assert.True(t, Totals{}.IsEmpty())
	assert.False(t, Totals{TotalTax: "1.00"}.IsEmpty())
}
