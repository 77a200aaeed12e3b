package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	middleware "github.com/davidemeka/ingesta/internal/api/middlewares"
	"github.com/davidemeka/ingesta/internal/config"
	"github.com/davidemeka/ingesta/internal/core"
	db "github.com/davidemeka/ingesta/internal/core/database"
	"github.com/davidemeka/ingesta/internal/core/ingest"
	"github.com/davidemeka/ingesta/internal/models"
)

type DocumentHandler struct {
	dbclient     db.DbClient
	objectclient core.ObjectClient
	pipeline     *ingest.Pipeline
	cfg          *config.Config
}

func NewDocumentHandler(dbclient db.DbClient, objectclient core.ObjectClient, pipeline *ingest.Pipeline, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, objectclient: objectclient, pipeline: pipeline, cfg: cfg}
}

// UploadDocument reads the multipart upload and runs the full ingestion
// pipeline synchronously. The response carries the ingestion outcome,
// including the duplicate flag when the content was already known.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(52 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	tags, err := parseTagsField(r.FormValue("tags"))
	if err != nil {
		http.Error(w, "invalid tags", http.StatusBadRequest)
		return
	}

	ingestCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	result, err := h.pipeline.Ingest(ingestCtx, ingest.IngestRequest{
		Data:        data,
		ContentType: contentType,
		FileName:    filepath.Base(header.Filename),
		UserID:      userID,
		Description: r.FormValue("description"),
		Tags:        tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnsupportedInput):
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		case errors.Is(err, core.ErrInsufficientText):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			log.Printf("ingest failed for %s: %v", header.Filename, err)
			http.Error(w, fmt.Sprintf("ingestion failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	documents, err := h.dbclient.ListDocuments(r.Context(), parseTagsQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.dbclient.GetDocumentByID(r.Context(), chi.URLParam(r, "document_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// DeleteDocument removes a document and its chunks. The archived original in
// object storage is deleted best-effort; a failed S3 delete does not block
// the store delete.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "document_id")

	doc, err := h.dbclient.GetDocumentByID(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	if h.objectclient != nil && doc.StorageURL != "" {
		key := fmt.Sprintf("%s/%s", doc.ID, doc.FileName)
		if err := h.objectclient.DeleteFile(r.Context(), h.cfg.BucketName, key); err != nil {
			log.Printf("archival delete failed for doc %s: %v", docID, err)
		}
	}

	if err := h.dbclient.DeleteDocument(r.Context(), docID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocumentsByTags removes every document matching the tag filter. The
// filter must not be empty; deleting the whole corpus requires per-document
// deletes.
func (h *DocumentHandler) DeleteDocumentsByTags(w http.ResponseWriter, r *http.Request) {
	filter := parseTagsQuery(r.URL.Query())
	if len(filter) == 0 {
		http.Error(w, "tag filter required", http.StatusBadRequest)
		return
	}

	deleted, err := h.dbclient.DeleteDocumentsByTags(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}

// parseTagsField decodes the optional tags form field, a JSON object of
// key -> value or key -> [values].
func parseTagsField(raw string) (models.Tags, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var loose map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, err
	}
	tags := make(models.Tags, len(loose))
	for key, val := range loose {
		var many []string
		if err := json.Unmarshal(val, &many); err == nil {
			tags[key] = many
			continue
		}
		var one string
		if err := json.Unmarshal(val, &one); err != nil {
			return nil, fmt.Errorf("tag %q: expected string or string array", key)
		}
		tags[key] = []string{one}
	}
	return tags, nil
}

// parseTagsQuery reads tag filters from query parameters of the form
// tag.<key>=<value>, repeated for multiple values.
func parseTagsQuery(values url.Values) models.Tags {
	tags := models.Tags{}
	for key, vals := range values {
		name, ok := strings.CutPrefix(key, "tag.")
		if !ok || name == "" {
			continue
		}
		tags[name] = append(tags[name], vals...)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
