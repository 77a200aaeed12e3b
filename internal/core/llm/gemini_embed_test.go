package llm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampDimTruncatesAndRenormalizes(t *testing.T) {
	vec := []float32{3, 4, 12, 84}

	out := clampDim(vec, 2)
	assert.Len(t, out, 2)

	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
	// Relative component proportions survive the rescale.
	assert.InDelta(t, float64(vec[0])/float64(vec[1]), float64(out[0])/float64(out[1]), 1e-6)
}

func TestClampDimLeavesFittingVectorsAlone(t *testing.T) {
	vec := []float32{1, 2, 3}
	assert.Equal(t, vec, clampDim(vec, 3))
	assert.Equal(t, vec, clampDim(vec, 10))
	assert.Equal(t, vec, clampDim(vec, 0))
}

func TestClampDimZeroPrefix(t *testing.T) {
	out := clampDim([]float32{0, 0, 5}, 2)
	assert.Equal(t, []float32{0, 0}, out)
}
