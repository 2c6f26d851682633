package transport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"already normalized", 0.5, 0.5},
		{"unit upper bound", 1.0, 1.0},
		{"zero", 0.0, 0.0},
		{"percentage", 75, 0.75},
		{"percentage upper bound", 100, 1.0},
		{"byte scaled", 204, 0.8},
		{"byte upper bound", 255, 1.0},
		{"beyond byte range", 300, 1.0},
		{"negative", -3, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Normalize(tt.raw), 1e-9)
		})
	}
}

func TestNormalizeNaN(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(math.NaN()), "NaN must collapse to zero")
}
