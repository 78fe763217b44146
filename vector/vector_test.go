package vector

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float32{1.0, 0.0, 0.0},
			expected: []float32{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float32{3.0, 4.0},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float32{-1.0, 1.0},
			expected: []float32{-1.0 / float32(math.Sqrt(2)), 1.0 / float32(math.Sqrt(2))},
		},
		{
			name:     "zero vector stays zero",
			input:    []float32{0, 0, 0},
			expected: []float32{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			require.Equal(t, len(tt.expected), len(result), "vector length mismatch")
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
			}
		})
	}
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	input := []float32{3.0, 4.0}
	_ = Normalize(input)
	assert.Equal(t, []float32{3.0, 4.0}, input)
}

func TestCosine(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-12)
	})
	t.Run("opposite", func(t *testing.T) {
		assert.InDelta(t, -1.0, Cosine([]float32{1, 2, 3}, []float32{-1, -2, -3}), 1e-12)
	})
	t.Run("orthogonal", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}))
	})
	t.Run("scale invariant", func(t *testing.T) {
		assert.InDelta(t, Cosine([]float32{1, 2}, []float32{3, 1}), Cosine([]float32{10, 20}, []float32{3, 1}), 1e-12)
	})
	t.Run("zero vector is exactly zero", func(t *testing.T) {
		r := rand.New(rand.NewPCG(1, 2))
		for i := 0; i < 50; i++ {
			v := randomVector(r, 16)
			assert.Equal(t, 0.0, Cosine(Zero(16), v))
			assert.Equal(t, 0.0, Cosine(v, Zero(16)))
		}
	})
	t.Run("length mismatch", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	})
	t.Run("NaN input", func(t *testing.T) {
		nan := float32(math.NaN())
		assert.Equal(t, 0.0, Cosine([]float32{nan, 1}, []float32{1, 1}))
	})
}

func TestCosine_Range(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 500; i++ {
		dim := 1 + r.IntN(64)
		u := randomVector(r, dim)
		v := randomVector(r, dim)
		if i%5 == 0 {
			v = u // drift at the boundary
		}
		sim := Cosine(u, v)
		assert.GreaterOrEqual(t, sim, -1.0)
		assert.LessOrEqual(t, sim, 1.0)
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero(Zero(4)))
	assert.False(t, IsZero([]float32{0, 0, 1e-9}))
}
