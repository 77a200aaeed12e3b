package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davidemeka/ingesta/internal/models"
)

// MemoryClient is a map-backed DbClient. It exists so the pipeline and fuser
// can be exercised without Postgres; it is a test double, not a production
// store.
type MemoryClient struct {
	mu     sync.RWMutex
	users  map[string]models.User // keyed by email
	docs   map[string]models.Document
	chunks map[string]models.DocumentChunk
	// insertion order of chunk IDs, for deterministic iteration
	chunkOrder []string
	docByFP    map[string]string
	chunkByFP  map[string]string
}

var _ DbClient = (*MemoryClient)(nil)

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		users:     make(map[string]models.User),
		docs:      make(map[string]models.Document),
		chunks:    make(map[string]models.DocumentChunk),
		docByFP:   make(map[string]string),
		chunkByFP: make(map[string]string),
	}
}

func (m *MemoryClient) Close() error { return nil }

func (m *MemoryClient) CreateUser(_ context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return fmt.Errorf("user exists: %s", user.Email)
	}
	m.users[user.Email] = *user
	return nil
}

func (m *MemoryClient) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryClient) CreateDocument(_ context.Context, doc *models.Document) (string, bool, error) {
	if doc == nil {
		return "", false, errors.New("nil document")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.docByFP[doc.Fingerprint]; ok {
		return existing, false, nil
	}
	d := *doc
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = d.CreatedAt
	m.docs[d.ID] = d
	m.docByFP[d.Fingerprint] = d.ID
	return d.ID, true, nil
}

func (m *MemoryClient) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryClient) GetDocumentByFingerprint(_ context.Context, fingerprint string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.docByFP[fingerprint]
	if !ok {
		return nil, nil
	}
	d := m.docs[id]
	return &d, nil
}

func (m *MemoryClient) ListDocuments(_ context.Context, filter models.Tags) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.Tags.Matches(filter) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryClient) UpdateDocumentStatus(_ context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("document not found: %s", id)
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	m.docs[id] = d
	return nil
}

func (m *MemoryClient) InsertDocumentChunks(_ context.Context, chunks []models.DocumentChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(chunks))
	for i := range chunks {
		ch := chunks[i]
		if existing, ok := m.chunkByFP[ch.Fingerprint]; ok {
			ids[i] = existing
			continue
		}
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = time.Now()
		}
		m.chunks[ch.ID] = ch
		m.chunkOrder = append(m.chunkOrder, ch.ID)
		m.chunkByFP[ch.Fingerprint] = ch.ID
		ids[i] = ch.ID
	}
	return ids, nil
}

func (m *MemoryClient) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.DocumentChunk
	for _, id := range m.chunkOrder {
		ch := m.chunks[id]
		if ch.DocumentID == documentID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MemoryClient) SearchChunksByVector(_ context.Context, queryVec []float32, filter models.Tags, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 || limit > CandidateCap {
		limit = CandidateCap
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ScoredChunk
	scanned := 0
	for _, id := range m.chunkOrder {
		ch := m.chunks[id]
		if ch.Embedding == nil {
			continue
		}
		if !m.docTagsMatch(ch.DocumentID, filter) {
			continue
		}
		if scanned++; scanned > CandidateCap {
			break
		}
		out = append(out, models.ScoredChunk{
			Chunk: ch,
			Score: CosineSimilarity(queryVec, ch.Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryClient) SearchChunksByKeyword(_ context.Context, query string, filter models.Tags, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 || limit > CandidateCap {
		limit = CandidateCap
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ScoredChunk
	for _, id := range m.chunkOrder {
		ch := m.chunks[id]
		if !m.docTagsMatch(ch.DocumentID, filter) {
			continue
		}
		text := strings.ToLower(ch.Text)
		hits := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, models.ScoredChunk{
			Chunk: ch,
			Score: float64(hits) / float64(len(terms)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryClient) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("document not found: %s", id)
	}
	m.deleteDocLocked(d)
	return nil
}

func (m *MemoryClient) DeleteDocumentsByTags(_ context.Context, filter models.Tags) (int64, error) {
	if len(filter) == 0 {
		return 0, errors.New("refusing to delete with empty tag filter")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.docs {
		if d.Tags.Matches(filter) {
			m.deleteDocLocked(d)
			n++
		}
	}
	return n, nil
}

// deleteDocLocked cascades to the document's chunks, mirroring the FK cascade
// in the Postgres schema.
func (m *MemoryClient) deleteDocLocked(d models.Document) {
	delete(m.docs, d.ID)
	delete(m.docByFP, d.Fingerprint)
	kept := m.chunkOrder[:0]
	for _, id := range m.chunkOrder {
		ch := m.chunks[id]
		if ch.DocumentID == d.ID {
			delete(m.chunks, id)
			delete(m.chunkByFP, ch.Fingerprint)
			continue
		}
		kept = append(kept, id)
	}
	m.chunkOrder = kept
}

func (m *MemoryClient) docTagsMatch(docID string, filter models.Tags) bool {
	if len(filter) == 0 {
		return true
	}
	d, ok := m.docs[docID]
	if !ok {
		return false
	}
	return d.Tags.Matches(filter)
}

// CosineSimilarity mirrors pgvector's cosine operator: dot(q,d)/(|q||d|),
// defined as 0 when either norm is 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
