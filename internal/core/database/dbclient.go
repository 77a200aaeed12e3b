package db

import (
	"context"

	"github.com/davidemeka/ingesta/internal/models"
)

// CandidateCap bounds how many stored vectors a single similarity query may
// scan. A performance cap, not a correctness knob.
const CandidateCap = 500

// DbClient defines all persistence the pipeline needs. It abstracts
// Postgres/pgvector so higher layers never depend on a specific store; the
// in-memory implementation backs the tests.
//
// All writes are idempotent with respect to content fingerprints: inserting a
// unit whose fingerprint already exists is a no-op that reports the existing
// record, never an error and never an overwrite.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// CreateDocument inserts the document unless its fingerprint is already
	// present; it returns the stored document's ID either way, with inserted
	// false on the duplicate path.
	CreateDocument(ctx context.Context, doc *models.Document) (id string, inserted bool, err error)
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error)
	ListDocuments(ctx context.Context, filter models.Tags) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	// InsertDocumentChunks bulk-inserts chunks in one round trip. Chunks whose
	// fingerprint already exists are skipped; the returned IDs map each input
	// chunk (by index) to the stored record, existing or new.
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) ([]string, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)

	// SearchChunksByVector ranks stored chunks by cosine similarity to the
	// query vector, scanning at most CandidateCap candidates.
	SearchChunksByVector(ctx context.Context, queryVec []float32, filter models.Tags, limit int) ([]models.ScoredChunk, error)

	// SearchChunksByKeyword ranks stored chunks by the store's native text
	// relevance score.
	SearchChunksByKeyword(ctx context.Context, query string, filter models.Tags, limit int) ([]models.ScoredChunk, error)

	// DeleteDocument removes a document; its chunks and their vectors cascade.
	DeleteDocument(ctx context.Context, id string) error
	DeleteDocumentsByTags(ctx context.Context, filter models.Tags) (int64, error)

	Close() error
}
