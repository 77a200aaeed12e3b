package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Tags maps classification keys (category, exam type, subject, ...) to one or
// more values. Tags are attached at ingestion time and replaced only by
// re-ingesting the document.
type Tags map[string][]string

// Matches reports whether t satisfies the given filter: every filter key must
// be present with at least one overlapping value. A nil or empty filter
// matches everything.
func (t Tags) Matches(filter Tags) bool {
	for key, wanted := range filter {
		values, ok := t[key]
		if !ok {
			return false
		}
		found := false
		for _, w := range wanted {
			for _, v := range values {
				if v == w {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// StrategySummary is the provenance record for one extraction candidate.
// Every strategy that ran during arbitration leaves one of these on the
// document, winner and losers alike.
type StrategySummary struct {
	Strategy  string `json:"strategy"`
	CharCount int    `json:"char_count"`
	PageCount int    `json:"page_count"`
	Error     string `json:"error,omitempty"`
}

// Document represents an ingested document and its extraction provenance.
type Document struct {
	ID            string            `db:"id" json:"id"`
	UserID        string            `db:"user_id" json:"user_id"`
	FileName      string            `db:"file_name" json:"file_name"`
	ContentType   string            `db:"content_type" json:"content_type"`
	Description   string            `db:"description" json:"description"`
	StorageURL    string            `db:"storage_url" json:"storage_url"` // archival copy of the original bytes
	Status        string            `db:"status" json:"status"`           // processing | ready | failed
	Fingerprint   string            `db:"fingerprint" json:"fingerprint"`
	Strategy      string            `db:"strategy" json:"strategy"` // winning extraction strategy
	CharCount     int               `db:"char_count" json:"char_count"`
	PageCount     int               `db:"page_count" json:"page_count"`
	TableCount    int               `db:"table_count" json:"table_count"`
	LowConfidence bool              `db:"low_confidence" json:"low_confidence"`
	Extraction    []StrategySummary `db:"extraction" json:"extraction"`
	Tags          Tags              `db:"tags" json:"tags"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk from a document. The embedding is
// nil when the gateway was unavailable at ingestion time; such chunks remain
// keyword-searchable.
type DocumentChunk struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	Position    int       `db:"position" json:"position"`
	TotalChunks int       `db:"total_chunks" json:"total_chunks"`
	Text        string    `db:"text" json:"text"`
	StartOffset int       `db:"start_offset" json:"start_offset"`
	EndOffset   int       `db:"end_offset" json:"end_offset"`
	Overlap     int       `db:"overlap" json:"overlap"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	Embedding   []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScoredChunk is a chunk with the store's native relevance score, as returned
// by a single retrieval mode.
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// Retrieval modes a SearchResult can originate from.
const (
	ModeVector  = "vector"
	ModeKeyword = "keyword"
	ModeBoth    = "both"
)

// SearchResult is one fused retrieval hit. Transient, never persisted.
type SearchResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
	Mode  string        `json:"mode"` // vector | keyword | both
	Tags  Tags          `json:"tags,omitempty"`
}
