package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davidemeka/ingesta/internal/config"
	"github.com/davidemeka/ingesta/internal/models"
)

// PostgresClient implements DbClient on Postgres with pgvector for similarity
// search and the built-in full-text machinery for keyword relevance.
type PostgresClient struct {
	db *sql.DB
}

var _ DbClient = (*PostgresClient)(nil)

func NewPostgresClient(ctx context.Context, cfg *config.Config) (*PostgresClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *PostgresClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateDocument inserts unless the fingerprint already exists. The insert and
// the duplicate lookup ride the same statement so concurrent ingestions of the
// same content cannot race into two rows.
func (c *PostgresClient) CreateDocument(ctx context.Context, doc *models.Document) (string, bool, error) {
	if doc == nil {
		return "", false, errors.New("nil document")
	}
	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return "", false, fmt.Errorf("marshal tags: %w", err)
	}
	extJSON, err := json.Marshal(doc.Extraction)
	if err != nil {
		return "", false, fmt.Errorf("marshal extraction summary: %w", err)
	}

	const q = `
		INSERT INTO documents
			(id, user_id, file_name, content_type, description, storage_url, status,
			 fingerprint, strategy, char_count, page_count, table_count, low_confidence,
			 extraction, tags, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id
	`
	var id string
	err = c.db.QueryRowContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.ContentType, doc.Description, doc.StorageURL,
		doc.Status, doc.Fingerprint, doc.Strategy, doc.CharCount, doc.PageCount,
		doc.TableCount, doc.LowConfidence, extJSON, tagsJSON,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, err
	}

	// Duplicate: hand back the existing record's ID.
	const dup = `SELECT id FROM documents WHERE fingerprint = $1`
	if err := c.db.QueryRowContext(ctx, dup, doc.Fingerprint).Scan(&id); err != nil {
		return "", false, err
	}
	return id, false, nil
}

func (c *PostgresClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = docSelect + ` WHERE id = $1`
	return c.scanDocument(c.db.QueryRowContext(ctx, q, id))
}

func (c *PostgresClient) GetDocumentByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error) {
	const q = docSelect + ` WHERE fingerprint = $1`
	return c.scanDocument(c.db.QueryRowContext(ctx, q, fingerprint))
}

const docSelect = `
	SELECT id, COALESCE(user_id::text, ''), file_name, content_type, description,
	       storage_url, status, fingerprint, strategy, char_count, page_count,
	       table_count, low_confidence, extraction, tags, created_at, updated_at
	FROM documents`

func (c *PostgresClient) scanDocument(row *sql.Row) (*models.Document, error) {
	var d models.Document
	var extJSON, tagsJSON []byte
	err := row.Scan(
		&d.ID, &d.UserID, &d.FileName, &d.ContentType, &d.Description,
		&d.StorageURL, &d.Status, &d.Fingerprint, &d.Strategy, &d.CharCount,
		&d.PageCount, &d.TableCount, &d.LowConfidence, &extJSON, &tagsJSON,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(extJSON, &d.Extraction); err != nil {
		return nil, fmt.Errorf("unmarshal extraction summary: %w", err)
	}
	if err := json.Unmarshal(tagsJSON, &d.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &d, nil
}

// tagFilterJSON renders a filter for the jsonb containment queries. A nil or
// empty filter becomes {}, which the queries treat as match-all.
func tagFilterJSON(filter models.Tags) ([]byte, error) {
	if len(filter) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal tag filter: %w", err)
	}
	return b, nil
}

func (c *PostgresClient) ListDocuments(ctx context.Context, filter models.Tags) ([]models.Document, error) {
	filterJSON, err := tagFilterJSON(filter)
	if err != nil {
		return nil, err
	}
	const q = docSelect + `
		WHERE ($1::jsonb = '{}'::jsonb OR tags @> $1::jsonb)
		ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, filterJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		var extJSON, tagsJSON []byte
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.FileName, &d.ContentType, &d.Description,
			&d.StorageURL, &d.Status, &d.Fingerprint, &d.Strategy, &d.CharCount,
			&d.PageCount, &d.TableCount, &d.LowConfidence, &extJSON, &tagsJSON,
			&d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(extJSON, &d.Extraction); err != nil {
			return nil, fmt.Errorf("unmarshal extraction summary: %w", err)
		}
		if err := json.Unmarshal(tagsJSON, &d.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *PostgresClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// InsertDocumentChunks writes all chunks in a single transaction. Duplicate
// fingerprints are skipped and resolved to their existing IDs.
func (c *PostgresClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, position, total_chunks, text, start_offset, end_offset,
			 overlap, fingerprint, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer stmt.Close()

	const dup = `SELECT id FROM document_chunks WHERE fingerprint = $1`

	ids := make([]string, len(chunks))
	for i := range chunks {
		ch := &chunks[i]
		var vec any
		if ch.Embedding != nil {
			vec = pgvector.NewVector(ch.Embedding)
		}

		var id string
		err := stmt.QueryRowContext(ctx,
			ch.ID, ch.DocumentID, ch.Position, ch.TotalChunks, ch.Text,
			ch.StartOffset, ch.EndOffset, ch.Overlap, ch.Fingerprint, vec,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			if err := tx.QueryRowContext(ctx, dup, ch.Fingerprint).Scan(&id); err != nil {
				_ = tx.Rollback()
				return nil, err
			}
		} else if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *PostgresClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, position, total_chunks, text, start_offset,
		       end_offset, overlap, fingerprint, embedding, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var ch models.DocumentChunk
		var emb sql.Null[pgvector.Vector]
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Position, &ch.TotalChunks, &ch.Text,
			&ch.StartOffset, &ch.EndOffset, &ch.Overlap, &ch.Fingerprint, &emb,
			&ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		if emb.Valid {
			ch.Embedding = emb.V.Slice()
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchChunksByVector ranks by cosine similarity (1 - cosine distance). The
// LIMIT doubles as the candidate scan cap.
func (c *PostgresClient) SearchChunksByVector(ctx context.Context, queryVec []float32, filter models.Tags, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 || limit > CandidateCap {
		limit = CandidateCap
	}
	filterJSON, err := tagFilterJSON(filter)
	if err != nil {
		return nil, err
	}

	const q = `
		SELECT c.id, c.document_id, c.position, c.total_chunks, c.text,
		       c.start_offset, c.end_offset, c.overlap, c.fingerprint, c.created_at,
		       1 - (c.embedding <=> $1) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
		  AND ($2::jsonb = '{}'::jsonb OR d.tags @> $2::jsonb)
		ORDER BY c.embedding <=> $1
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, vec, filterJSON, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredChunks(rows)
}

// SearchChunksByKeyword ranks by ts_rank_cd over the generated tsvector.
func (c *PostgresClient) SearchChunksByKeyword(ctx context.Context, query string, filter models.Tags, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 || limit > CandidateCap {
		limit = CandidateCap
	}
	filterJSON, err := tagFilterJSON(filter)
	if err != nil {
		return nil, err
	}

	const q = `
		SELECT c.id, c.document_id, c.position, c.total_chunks, c.text,
		       c.start_offset, c.end_offset, c.overlap, c.fingerprint, c.created_at,
		       ts_rank_cd(c.tsv, websearch_to_tsquery('english', $1)) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.tsv @@ websearch_to_tsquery('english', $1)
		  AND ($2::jsonb = '{}'::jsonb OR d.tags @> $2::jsonb)
		ORDER BY score DESC
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, query, filterJSON, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredChunks(rows)
}

func scanScoredChunks(rows *sql.Rows) ([]models.ScoredChunk, error) {
	var out []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(
			&sc.Chunk.ID, &sc.Chunk.DocumentID, &sc.Chunk.Position,
			&sc.Chunk.TotalChunks, &sc.Chunk.Text, &sc.Chunk.StartOffset,
			&sc.Chunk.EndOffset, &sc.Chunk.Overlap, &sc.Chunk.Fingerprint,
			&sc.Chunk.CreatedAt, &sc.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (c *PostgresClient) DeleteDocument(ctx context.Context, id string) error {
	// Chunks and their vectors go with the document via ON DELETE CASCADE.
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *PostgresClient) DeleteDocumentsByTags(ctx context.Context, filter models.Tags) (int64, error) {
	if len(filter) == 0 {
		return 0, errors.New("refusing to delete with empty tag filter")
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return 0, fmt.Errorf("marshal tag filter: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE tags @> $1::jsonb`, filterJSON)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
