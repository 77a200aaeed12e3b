package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/davidemeka/ingesta/internal/core"
	db "github.com/davidemeka/ingesta/internal/core/database"
	"github.com/davidemeka/ingesta/internal/models"
)

// DefaultBoost is the multiplier applied to chunks found by both retrieval
// modes, over the higher of their two scores.
const DefaultBoost = 1.2

// DefaultLimit caps result sets when the caller does not specify one.
const DefaultLimit = 10

// Query is one retrieval request.
type Query struct {
	Text string
	Tags models.Tags
	// Limit is the maximum number of fused results (top-k, applied after
	// ranking, never per mode).
	Limit int
	// MinScore, when positive, filters low-confidence matches after ranking.
	MinScore float64
}

// Fuser runs hybrid retrieval: vector similarity and keyword match dispatched
// over the same query, merged by chunk identity, boosted when both modes
// agree, and ranked. When the embedding gateway is unavailable the fuser
// degrades to keyword-only results rather than failing.
type Fuser struct {
	db       db.DbClient
	embedder core.EmbeddingProvider
	boost    float64
	logger   *slog.Logger
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fuser) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithBoost overrides the both-modes score multiplier.
func WithBoost(boost float64) Option {
	return func(f *Fuser) {
		if boost > 1 {
			f.boost = boost
		}
	}
}

// NewFuser wires the fuser. The embedder may be nil, in which case every
// query is keyword-only.
func NewFuser(dbc db.DbClient, embedder core.EmbeddingProvider, opts ...Option) (*Fuser, error) {
	if dbc == nil {
		return nil, errors.New("fuser requires a store")
	}
	f := &Fuser{
		db:       dbc,
		embedder: embedder,
		boost:    DefaultBoost,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Search executes one fused query.
func (f *Fuser) Search(ctx context.Context, q Query) ([]models.SearchResult, error) {
	if q.Text == "" {
		return []models.SearchResult{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	// Fetch more per mode than the caller asked for: truncating before the
	// merge would under-represent chunks that rank moderately in both modes
	// but highly after fusion.
	internalLimit := limit * 2

	var vectorHits, keywordHits []models.ScoredChunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := f.db.SearchChunksByKeyword(gctx, q.Text, q.Tags, internalLimit)
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		keywordHits = hits
		return nil
	})
	g.Go(func() error {
		// Vector dispatch degrades instead of failing: no embedder, a gateway
		// timeout, or a vector-search error all mean keyword-only results.
		hits, err := f.vectorSearch(gctx, q.Text, q.Tags, internalLimit)
		if err != nil {
			f.logger.Warn("vector search unavailable, degrading to keyword-only", "err", err)
			return nil
		}
		vectorHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := f.merge(vectorHits, keywordHits)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if pi, pj := modePriority(results[i].Mode), modePriority(results[j].Mode); pi != pj {
			return pi > pj
		}
		// Remaining ties break by ingestion order: creation time first, then
		// within-document position for chunks stored in the same batch.
		if !results[i].Chunk.CreatedAt.Equal(results[j].Chunk.CreatedAt) {
			return results[i].Chunk.CreatedAt.Before(results[j].Chunk.CreatedAt)
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if len(results) > limit {
		results = results[:limit]
	}
	if q.MinScore > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= q.MinScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	f.logger.Debug("search fused",
		"query", q.Text, "vector_hits", len(vectorHits),
		"keyword_hits", len(keywordHits), "results", len(results))
	return results, nil
}

func (f *Fuser) vectorSearch(ctx context.Context, text string, tags models.Tags, limit int) ([]models.ScoredChunk, error) {
	if f.embedder == nil {
		return nil, core.ErrGatewayUnavailable
	}
	vecs, err := f.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, core.ErrGatewayUnavailable
	}
	return f.db.SearchChunksByVector(ctx, vecs[0], tags, limit)
}

// merge keys both result sets by chunk identity. A chunk found by both modes
// gets the higher of its two scores times the boost and is tagged "both".
func (f *Fuser) merge(vectorHits, keywordHits []models.ScoredChunk) []models.SearchResult {
	byID := make(map[string]*models.SearchResult, len(vectorHits)+len(keywordHits))
	order := make([]string, 0, len(vectorHits)+len(keywordHits))

	for _, h := range vectorHits {
		byID[h.Chunk.ID] = &models.SearchResult{Chunk: h.Chunk, Score: h.Score, Mode: models.ModeVector}
		order = append(order, h.Chunk.ID)
	}
	for _, h := range keywordHits {
		if existing, ok := byID[h.Chunk.ID]; ok {
			higher := existing.Score
			if h.Score > higher {
				higher = h.Score
			}
			existing.Score = higher * f.boost
			existing.Mode = models.ModeBoth
			continue
		}
		byID[h.Chunk.ID] = &models.SearchResult{Chunk: h.Chunk, Score: h.Score, Mode: models.ModeKeyword}
		order = append(order, h.Chunk.ID)
	}

	results := make([]models.SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}
	return results
}

func modePriority(mode string) int {
	switch mode {
	case models.ModeBoth:
		return 3
	case models.ModeVector:
		return 2
	case models.ModeKeyword:
		return 1
	}
	return 0
}
