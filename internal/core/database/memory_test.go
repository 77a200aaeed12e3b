package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidemeka/ingesta/internal/models"
)

func TestCreateDocumentIdempotentByFingerprint(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	doc := &models.Document{ID: "doc-1", FileName: "a.txt", Fingerprint: "fp-1"}
	id, inserted, err := m.CreateDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "doc-1", id)

	// Same fingerprint under a different ID resolves to the original record.
	again := &models.Document{ID: "doc-2", FileName: "copy.txt", Fingerprint: "fp-1"}
	id, inserted, err = m.CreateDocument(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "doc-1", id)

	docs, err := m.ListDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestInsertDocumentChunksSkipsKnownFingerprints(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	first := []models.DocumentChunk{
		{ID: "c-1", DocumentID: "doc-1", Position: 0, Text: "alpha", Fingerprint: "cfp-1"},
		{ID: "c-2", DocumentID: "doc-1", Position: 1, Text: "beta", Fingerprint: "cfp-2"},
	}
	ids, err := m.InsertDocumentChunks(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, ids)

	// Re-inserting one known chunk and one new chunk stores only the new one,
	// and the returned IDs point at the stored records either way.
	second := []models.DocumentChunk{
		{ID: "c-3", DocumentID: "doc-2", Position: 0, Text: "alpha", Fingerprint: "cfp-1"},
		{ID: "c-4", DocumentID: "doc-2", Position: 1, Text: "gamma", Fingerprint: "cfp-3"},
	}
	ids, err = m.InsertDocumentChunks(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-4"}, ids)

	chunks, err := m.GetChunksByDocument(ctx, "doc-2")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestListDocumentsFiltersByTags(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	_, _, err := m.CreateDocument(ctx, &models.Document{
		ID: "d1", Fingerprint: "f1",
		Tags: models.Tags{"subject": {"math"}, "level": {"intro"}},
	})
	require.NoError(t, err)
	_, _, err = m.CreateDocument(ctx, &models.Document{
		ID: "d2", Fingerprint: "f2",
		Tags: models.Tags{"subject": {"physics"}},
	})
	require.NoError(t, err)

	t.Run("matching filter", func(t *testing.T) {
		docs, err := m.ListDocuments(ctx, models.Tags{"subject": {"math"}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "d1", docs[0].ID)
	})

	t.Run("empty filter matches all", func(t *testing.T) {
		docs, err := m.ListDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("no match", func(t *testing.T) {
		docs, err := m.ListDocuments(ctx, models.Tags{"subject": {"chemistry"}})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestDeleteDocumentCascadesToChunks(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	_, _, err := m.CreateDocument(ctx, &models.Document{ID: "d1", Fingerprint: "f1"})
	require.NoError(t, err)
	_, err = m.InsertDocumentChunks(ctx, []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", Text: "to be removed", Fingerprint: "cf1"},
	})
	require.NoError(t, err)

	require.NoError(t, m.DeleteDocument(ctx, "d1"))

	doc, err := m.GetDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, doc)

	chunks, err := m.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// The fingerprints are free again: re-ingesting the same content after a
	// delete must succeed as a fresh insert.
	_, inserted, err := m.CreateDocument(ctx, &models.Document{ID: "d1b", Fingerprint: "f1"})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestDeleteDocumentsByTags(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	_, _, err := m.CreateDocument(ctx, &models.Document{
		ID: "d1", Fingerprint: "f1", Tags: models.Tags{"exam": {"2025"}},
	})
	require.NoError(t, err)
	_, _, err = m.CreateDocument(ctx, &models.Document{
		ID: "d2", Fingerprint: "f2", Tags: models.Tags{"exam": {"2026"}},
	})
	require.NoError(t, err)

	t.Run("refuses empty filter", func(t *testing.T) {
		_, err := m.DeleteDocumentsByTags(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("deletes matching only", func(t *testing.T) {
		n, err := m.DeleteDocumentsByTags(ctx, models.Tags{"exam": {"2025"}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		docs, err := m.ListDocuments(ctx, nil)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "d2", docs[0].ID)
	})
}

func TestSearchChunksByVectorSkipsVectorless(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	_, err := m.InsertDocumentChunks(ctx, []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", Text: "has vector", Fingerprint: "cf1", Embedding: []float32{1, 0}},
		{ID: "c2", DocumentID: "d1", Text: "no vector", Fingerprint: "cf2"},
	})
	require.NoError(t, err)

	hits, err := m.SearchChunksByVector(ctx, []float32{1, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].Chunk.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSearchChunksByKeywordScoresTermHits(t *testing.T) {
	m := NewMemoryClient()
	ctx := context.Background()

	_, err := m.InsertDocumentChunks(ctx, []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", Text: "Ohm's law relates voltage and current", Fingerprint: "cf1"},
		{ID: "c2", DocumentID: "d1", Text: "voltage dividers split a supply", Fingerprint: "cf2"},
		{ID: "c3", DocumentID: "d1", Text: "unrelated cooking recipe", Fingerprint: "cf3"},
	})
	require.NoError(t, err)

	hits, err := m.SearchChunksByKeyword(ctx, "voltage current", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].Chunk.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
}
