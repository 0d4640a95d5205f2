package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		assert.InDelta(t, -1.0, Cosine([]float32{1, 2}, []float32{-1, -2}), 1e-9)
	})

	t.Run("mismatched length returns 0", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	})

	t.Run("empty vectors return 0", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
		assert.Equal(t, 0.0, Cosine([]float32{}, []float32{}))
	})

	t.Run("zero vector returns 0", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	})
}
