package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/davidemeka/ingesta/internal/core"
	db "github.com/davidemeka/ingesta/internal/core/database"
	"github.com/davidemeka/ingesta/internal/core/extraction"
	"github.com/davidemeka/ingesta/internal/models"
)

// IngestRequest carries one document into the pipeline.
type IngestRequest struct {
	Data        []byte
	ContentType string
	FileName    string
	UserID      string
	Description string
	Tags        models.Tags
}

// IngestResult reports what ingestion produced. Duplicate is a normal
// outcome, not an error: DocumentID then points at the pre-existing record
// and no new rows were created.
type IngestResult struct {
	DocumentID    string   `json:"document_id"`
	ChunkIDs      []string `json:"chunk_ids,omitempty"`
	ChunkCount    int      `json:"chunk_count"`
	Strategy      string   `json:"strategy,omitempty"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
	Duplicate     bool     `json:"duplicate,omitempty"`
	Embedded      bool     `json:"embedded"`
}

// Pipeline orchestrates one document's ingestion: arbitrated extraction,
// chunking, fingerprint dedup, batched embedding, and a single bulk store
// write. Each call is self-contained; the store is the only shared state.
type Pipeline struct {
	db       db.DbClient
	embedder core.EmbeddingProvider
	arbiter  *extraction.Arbiter
	chunker  *Chunker
	obj      core.ObjectClient
	bucket   string
	cfg      Config
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObjectStorage enables archival of original document bytes. Archival
// failures are logged, never fatal.
func WithObjectStorage(obj core.ObjectClient, bucket string) Option {
	return func(p *Pipeline) {
		p.obj = obj
		p.bucket = bucket
	}
}

// NewPipeline wires the pipeline. The embedder may be nil; ingestion then
// stores chunks without vectors and retrieval degrades to keyword-only.
func NewPipeline(dbc db.DbClient, embedder core.EmbeddingProvider, arbiter *extraction.Arbiter, cfg Config, opts ...Option) (*Pipeline, error) {
	if dbc == nil {
		return nil, errors.New("pipeline requires a store")
	}
	if arbiter == nil {
		return nil, errors.New("pipeline requires an extraction arbiter")
	}
	chunker, err := NewChunker(cfg.TargetSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultConfig().MinTextChars
	}

	p := &Pipeline{
		db:       dbc,
		embedder: embedder,
		arbiter:  arbiter,
		chunker:  chunker,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest runs the full pipeline for one document.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty source bytes: %w", core.ErrUnsupportedInput)
	}

	// Fingerprint first: byte-identical re-ingestion must short-circuit before
	// any extraction or embedding work.
	docFP := Fingerprint(req.Data)
	if existing, err := p.db.GetDocumentByFingerprint(ctx, docFP); err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	} else if existing != nil {
		p.logger.Info("duplicate document rejected",
			"fingerprint", docFP, "existing_id", existing.ID)
		chunks, err := p.db.GetChunksByDocument(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("load existing chunks: %w", err)
		}
		return &IngestResult{
			DocumentID: existing.ID,
			ChunkCount: len(chunks),
			Strategy:   existing.Strategy,
			Duplicate:  true,
		}, nil
	}

	res, err := p.arbiter.Extract(req.Data, req.ContentType)
	if err != nil {
		return nil, err
	}
	if res.CharCount < p.cfg.MinTextChars {
		return nil, fmt.Errorf("extracted %d chars, need at least %d: %w",
			res.CharCount, p.cfg.MinTextChars, core.ErrInsufficientText)
	}

	chunks := p.chunker.Split(res.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no usable chunks: %w", core.ErrInsufficientText)
	}

	docID := uuid.NewString()
	storageURL := p.archive(ctx, docID, req)

	doc := &models.Document{
		ID:            docID,
		UserID:        req.UserID,
		FileName:      req.FileName,
		ContentType:   req.ContentType,
		Description:   req.Description,
		StorageURL:    storageURL,
		Status:        "processing",
		Fingerprint:   docFP,
		Strategy:      res.Strategy,
		CharCount:     res.CharCount,
		PageCount:     res.PageCount,
		TableCount:    res.TableCount,
		LowConfidence: res.LowConfidence,
		Extraction:    res.Candidates,
		Tags:          req.Tags,
	}
	storedID, inserted, err := p.db.CreateDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if !inserted {
		// Lost a race with a concurrent identical ingestion. Same outcome as
		// the lookup above.
		return &IngestResult{DocumentID: storedID, Strategy: res.Strategy, Duplicate: true}, nil
	}

	rows := make([]models.DocumentChunk, len(chunks))
	for i, ch := range chunks {
		rows[i] = models.DocumentChunk{
			ID:          uuid.NewString(),
			DocumentID:  docID,
			Position:    ch.Position,
			TotalChunks: len(chunks),
			Text:        ch.Text,
			StartOffset: ch.Start,
			EndOffset:   ch.End,
			Overlap:     ch.Overlap,
			Fingerprint: FingerprintText(ch.Text),
		}
	}

	embedded := p.embedChunks(ctx, rows)

	ids, err := p.db.InsertDocumentChunks(ctx, rows)
	if err != nil {
		_ = p.db.UpdateDocumentStatus(ctx, docID, "failed")
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	if err := p.db.UpdateDocumentStatus(ctx, docID, "ready"); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	p.logger.Info("document ingested",
		"document_id", docID, "strategy", res.Strategy, "chunks", len(ids),
		"embedded", embedded, "low_confidence", res.LowConfidence)

	return &IngestResult{
		DocumentID:    docID,
		ChunkIDs:      ids,
		ChunkCount:    len(ids),
		Strategy:      res.Strategy,
		LowConfidence: res.LowConfidence,
		Embedded:      embedded,
	}, nil
}

// embedChunks fills in embeddings batch by batch. Gateway unavailability is a
// degradation, not a failure: affected chunks stay vectorless and remain
// keyword-searchable. Reports whether any batch was embedded.
func (p *Pipeline) embedChunks(ctx context.Context, rows []models.DocumentChunk) bool {
	if p.embedder == nil {
		return false
	}
	embedded := false
	for lo := 0; lo < len(rows); lo += p.cfg.BatchSize {
		hi := lo + p.cfg.BatchSize
		if hi > len(rows) {
			hi = len(rows)
		}
		texts := make([]string, hi-lo)
		for i := lo; i < hi; i++ {
			texts[i-lo] = rows[i].Text
		}

		vecs, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			p.logger.Warn("embedding unavailable, storing chunks without vectors",
				"from", lo, "to", hi, "err", err)
			if errors.Is(err, core.ErrGatewayUnavailable) {
				// No point retrying remaining batches this call.
				break
			}
			continue
		}
		if len(vecs) != len(texts) {
			p.logger.Warn("embedding count mismatch, skipping batch",
				"got", len(vecs), "want", len(texts))
			continue
		}
		for i := lo; i < hi; i++ {
			rows[i].Embedding = vecs[i-lo]
		}
		embedded = true
	}
	return embedded
}

// archive uploads the original bytes for provenance when object storage is
// configured. Returns the storage URL, or "" when unavailable.
func (p *Pipeline) archive(ctx context.Context, docID string, req IngestRequest) string {
	if p.obj == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s", docID, req.FileName)
	url, err := p.obj.UploadFile(ctx, p.bucket, key, req.Data, req.ContentType)
	if err != nil {
		p.logger.Warn("archival upload failed", "document_id", docID, "err", err)
		return ""
	}
	return url
}
