package llm

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/davidemeka/ingesta/internal/core"
)

const (
	// maxEmbedChars truncates inputs to the gateway's practical limit.
	maxEmbedChars = 8000

	embedAttempts = 3
	embedBackoff  = 500 * time.Millisecond
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
	timeout   time.Duration
}

// NewGeminiEmbedder builds the gateway client. dim is the stored vector width;
// model output wider than dim is truncated to fit, so it must match the store's
// vector column.
func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int, timeout time.Duration) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dim: dim, timeout: timeout}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts batches all texts in one request via EmbeddingBatch. Each
// attempt gets its own timeout; after the retries are exhausted the error
// wraps core.ErrGatewayUnavailable so callers can degrade instead of failing.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(truncate(t, maxEmbedChars)))
	}

	var resp *genai.BatchEmbedContentsResponse
	var err error
	backoff := embedBackoff
	for attempt := 1; attempt <= embedAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err = em.BatchEmbedContents(callCtx, batch)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < embedAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("gemini batch embed: %w: %w", core.ErrGatewayUnavailable, ctx.Err())
			}
			backoff *= 2
		}
	}
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w: %w", core.ErrGatewayUnavailable, err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, clampDim(e.Values, g.dim))
	}
	return out, nil
}

// clampDim cuts a vector down to dim and rescales it to unit length. Gemini
// embeddings are Matryoshka-trained, so a renormalized prefix is still a valid
// embedding at the smaller width.
func clampDim(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) <= dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec[:dim])
	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
