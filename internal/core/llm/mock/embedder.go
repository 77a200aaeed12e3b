// Package mock provides deterministic in-process stand-ins for the embedding
// gateway, for tests and offline development.
package mock

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/davidemeka/ingesta/internal/core"
)

// Dim is the vector width the mock embedder produces.
const Dim = 64

// Embedder maps text to a small deterministic vector by hashing tokens into
// buckets. Texts sharing words get similar vectors, which is enough for
// retrieval tests to rank overlapping content above unrelated content.
type Embedder struct {
	Calls int
}

func NewEmbedder() *Embedder {
	return &Embedder{}
}

func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.Calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Embed(t)
	}
	return out, nil
}

// Embed is the deterministic text-to-vector mapping used by the mock.
func Embed(text string) []float32 {
	vec := make([]float32, Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		var h uint32 = 2166136261
		for _, b := range []byte(tok) {
			h ^= uint32(b)
			h *= 16777619
		}
		vec[h%Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

var _ core.EmbeddingProvider = (*Embedder)(nil)

// UnavailableEmbedder always fails with core.ErrGatewayUnavailable, for
// exercising degradation paths.
type UnavailableEmbedder struct {
	Calls int
}

func (e *UnavailableEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	e.Calls++
	return nil, fmt.Errorf("mock gateway down: %w", core.ErrGatewayUnavailable)
}

var _ core.EmbeddingProvider = (*UnavailableEmbedder)(nil)
