package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8}, // (1 - -1)^2 + (-1 - 1)^2 = 4 + 4 = 8
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquaredL2(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestArgMinSquaredL2(t *testing.T) {
	candidates := [][]float32{
		{10, 10},
		{1, 1},
		{0, 0},
		{5, 5},
	}

	// {1, 1} and {0, 0} tie at 0.5; the lower index wins.
	idx, dist := ArgMinSquaredL2([]float32{0.5, 0.5}, candidates)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, float32(0.5), dist, 1e-5)

	idx, dist = ArgMinSquaredL2([]float32{1, 1}, candidates)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, float32(0), dist, 1e-5)
}
