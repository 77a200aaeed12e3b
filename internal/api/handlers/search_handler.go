package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/davidemeka/ingesta/internal/core"
	"github.com/davidemeka/ingesta/internal/core/search"
	"github.com/davidemeka/ingesta/internal/models"
)

type SearchHandler struct {
	fuser *search.Fuser
	llm   core.LLMProvider
}

func NewSearchHandler(fuser *search.Fuser, llm core.LLMProvider) *SearchHandler {
	return &SearchHandler{fuser: fuser, llm: llm}
}

type searchRequest struct {
	Query    string      `json:"query"`
	Tags     models.Tags `json:"tags,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	MinScore float64     `json:"min_score,omitempty"`
}

type searchResponse struct {
	Results []models.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// Search runs one hybrid retrieval query and returns the fused ranking.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query required", http.StatusBadRequest)
		return
	}

	results, err := h.fuser.Search(r.Context(), search.Query{
		Text:     req.Query,
		Tags:     req.Tags,
		Limit:    req.Limit,
		MinScore: req.MinScore,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{Results: results, Count: len(results)})
}

type askResponse struct {
	Answer  string                `json:"answer"`
	Sources []models.SearchResult `json:"sources"`
}

const askSystemPrompt = "You are a study assistant. Answer using only the provided context passages. If the context does not contain the answer, say so plainly."

// Ask retrieves relevant chunks and asks the LLM to answer grounded on them.
func (h *SearchHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		http.Error(w, "generation not configured", http.StatusServiceUnavailable)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query required", http.StatusBadRequest)
		return
	}

	results, err := h.fuser.Search(r.Context(), search.Query{
		Text:  req.Query,
		Tags:  req.Tags,
		Limit: req.Limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for _, res := range results {
		b.WriteString("[")
		b.WriteString(strings.TrimSpace(res.Chunk.Text))
		b.WriteString("]\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(req.Query)

	answer, err := h.llm.Generate(r.Context(), askSystemPrompt, b.String())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(askResponse{Answer: answer, Sources: results})
}
