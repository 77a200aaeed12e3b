package search

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/davidemeka/ingesta/internal/core/database"
	"github.com/davidemeka/ingesta/internal/core/extraction"
	"github.com/davidemeka/ingesta/internal/core/ingest"
	"github.com/davidemeka/ingesta/internal/core/llm/mock"
	"github.com/davidemeka/ingesta/internal/models"
)

// seedChunks stores one document per text with a mock-embedded chunk, so both
// retrieval modes have something to find.
func seedChunks(t *testing.T, store *db.MemoryClient, tags models.Tags, texts ...string) {
	t.Helper()
	ctx := context.Background()
	for _, text := range texts {
		docID := "doc-" + text
		_, inserted, err := store.CreateDocument(ctx, &models.Document{
			ID:          docID,
			FileName:    docID + ".txt",
			Status:      "ready",
			Fingerprint: "doc-fp-" + text,
			Tags:        tags,
		})
		require.NoError(t, err)
		require.True(t, inserted)

		_, err = store.InsertDocumentChunks(ctx, []models.DocumentChunk{{
			ID:          docID + "-chunk",
			DocumentID:  docID,
			Position:    0,
			TotalChunks: 1,
			Text:        text,
			Fingerprint: "chunk-fp-" + text,
			Embedding:   mock.Embed(text),
		}})
		require.NoError(t, err)
	}
}

func TestSearchBoostsChunksFoundByBothModes(t *testing.T) {
	store := db.NewMemoryClient()
	seedChunks(t, store, nil,
		"mitochondria produce cellular energy",
		"the treaty was signed in vienna",
	)

	f, err := NewFuser(store, mock.NewEmbedder())
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{Text: "mitochondria produce cellular energy"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, models.ModeBoth, top.Mode)
	assert.Contains(t, top.Chunk.Text, "mitochondria")
	// The boosted score exceeds what either mode alone can produce: both the
	// cosine and the keyword hit ratio top out at 1.
	assert.Greater(t, top.Score, 1.0)
}

func TestSearchDegradesToKeywordOnly(t *testing.T) {
	store := db.NewMemoryClient()
	seedChunks(t, store, nil, "glaciers carve valleys over millennia")

	t.Run("gateway unavailable", func(t *testing.T) {
		f, err := NewFuser(store, &mock.UnavailableEmbedder{})
		require.NoError(t, err)

		results, err := f.Search(context.Background(), Query{Text: "glaciers carve valleys"})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.Equal(t, models.ModeKeyword, r.Mode)
		}
	})

	t.Run("no embedder configured", func(t *testing.T) {
		f, err := NewFuser(store, nil)
		require.NoError(t, err)

		results, err := f.Search(context.Background(), Query{Text: "glaciers carve valleys"})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, models.ModeKeyword, results[0].Mode)
	})
}

func TestSearchAppliesLimitAfterFusion(t *testing.T) {
	store := db.NewMemoryClient()
	seedChunks(t, store, nil,
		"apple orchards bloom in spring",
		"banana plants grow in the tropics",
		"cherry trees line the avenue",
		"date palms thrive in deserts",
	)

	f, err := NewFuser(store, mock.NewEmbedder())
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{Text: "plants trees bloom grow", Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSearchMinScoreFiltersWeakMatches(t *testing.T) {
	store := db.NewMemoryClient()
	seedChunks(t, store, nil,
		"volcanic eruptions reshape coastlines",
		"parliamentary debates ran long yesterday",
	)

	f, err := NewFuser(store, mock.NewEmbedder())
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{
		Text:     "volcanic eruptions reshape coastlines",
		MinScore: 1.0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 1.0)
		assert.Contains(t, r.Chunk.Text, "volcanic")
	}
}

func TestSearchHonorsTagFilter(t *testing.T) {
	store := db.NewMemoryClient()
	seedChunks(t, store, models.Tags{"subject": {"geology"}},
		"sedimentary rock forms in layers",
	)
	seedChunks(t, store, models.Tags{"subject": {"history"}},
		"sedimentary records of ancient trade routes",
	)

	f, err := NewFuser(store, mock.NewEmbedder())
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{
		Text: "sedimentary",
		Tags: models.Tags{"subject": {"geology"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Chunk.Text, "rock forms")
}

func TestSearchTieBreaksByIngestionOrder(t *testing.T) {
	store := db.NewMemoryClient()
	ctx := context.Background()

	earlier := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	later := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	// The chunk stored first was ingested later; with identical scores and
	// modes the ranking must follow ingestion time, not store order or the
	// chunks' within-document positions.
	_, _, err := store.CreateDocument(ctx, &models.Document{ID: "d-late", Fingerprint: "f-late"})
	require.NoError(t, err)
	_, err = store.InsertDocumentChunks(ctx, []models.DocumentChunk{{
		ID: "late-chunk", DocumentID: "d-late", Position: 0,
		Text: "quartz veins in granite", Fingerprint: "cf-late", CreatedAt: later,
	}})
	require.NoError(t, err)

	_, _, err = store.CreateDocument(ctx, &models.Document{ID: "d-early", Fingerprint: "f-early"})
	require.NoError(t, err)
	_, err = store.InsertDocumentChunks(ctx, []models.DocumentChunk{{
		ID: "early-chunk", DocumentID: "d-early", Position: 5,
		Text: "quartz crystals under pressure", Fingerprint: "cf-early", CreatedAt: earlier,
	}})
	require.NoError(t, err)

	f, err := NewFuser(store, nil)
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{Text: "quartz"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "early-chunk", results[0].Chunk.ID)
	assert.Equal(t, "late-chunk", results[1].Chunk.ID)
}

func TestSearchFindsIngestedContent(t *testing.T) {
	store := db.NewMemoryClient()
	embedder := mock.NewEmbedder()

	arbiter, err := extraction.NewArbiter(slog.Default(), extraction.NewPlainTextStrategy())
	require.NoError(t, err)
	t.Cleanup(arbiter.Release)

	pipeline, err := ingest.NewPipeline(store, embedder, arbiter, ingest.Config{
		TargetSize: 200, Overlap: 20, BatchSize: 4, MinTextChars: 50,
	})
	require.NoError(t, err)

	var doc strings.Builder
	doc.WriteString("The krebs cycle oxidizes acetyl groups inside the mitochondria. ")
	for i := 0; i < 6; i++ {
		doc.WriteString("Cellular respiration proceeds through glycolysis and oxidative phosphorylation. ")
	}
	res, err := pipeline.Ingest(context.Background(), ingest.IngestRequest{
		Data:        []byte(doc.String()),
		ContentType: "text/plain",
		FileName:    "respiration.txt",
	})
	require.NoError(t, err)
	require.Greater(t, res.ChunkCount, 0)

	f, err := NewFuser(store, embedder)
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{Text: "krebs cycle mitochondria"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Chunk.Text, "krebs cycle")
	assert.Equal(t, res.DocumentID, results[0].Chunk.DocumentID)
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	f, err := NewFuser(db.NewMemoryClient(), mock.NewEmbedder())
	require.NoError(t, err)

	results, err := f.Search(context.Background(), Query{Text: ""})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewFuserRequiresStore(t *testing.T) {
	_, err := NewFuser(nil, mock.NewEmbedder())
	assert.Error(t, err)
}
