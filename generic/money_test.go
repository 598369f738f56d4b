package generic_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/labor-engine/generic"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  generic.Cents
	}{
		{"whole", 1700, 170000},
		{"exact cents", 123.45, 12345},
		{"half rounds up", 10.005, 1001},
		{"below half rounds down", 1.234, 123},
		{"binary noise", 0.1 + 0.2, 30},
		{"zero", 0, 0},
		{"NaN", math.NaN(), 0},
		{"infinity", math.Inf(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.ToCents(tt.value))
		})
	}
}

func TestCents_Format(t *testing.T) {
	assert.Equal(t, "1700.00", generic.Cents(170000).String())
	assert.Equal(t, "0.05", generic.Cents(5).String())
	assert.InDelta(t, 123.45, generic.FromCents(12345), 1e-9)
	assert.Equal(t, generic.Cents(7), generic.MaxCents(3, 7))
}
