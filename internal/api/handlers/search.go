package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/embedding"
	"github.com/promptforge/promptforge/internal/vectorstore"
)

// Searcher is the vector lookup surface behind semantic search.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
}

type SearchHandler struct {
	embedder *embedding.Service
	vectors  Searcher
}

func NewSearchHandler(embedder *embedding.Service, vectors Searcher) *SearchHandler {
	return &SearchHandler{embedder: embedder, vectors: vectors}
}

// Search finds versions semantically close to the query text. With a
// prompt ID in the path the search is scoped to that prompt's history,
// otherwise it spans the whole library.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q required"})
		return
	}

	opts := vectorstore.SearchOptions{}
	if raw := chi.URLParam(r, "id"); raw != "" {
		promptID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
			return
		}
		opts.PromptID = promptID
	}
	if topK, _ := strconv.Atoi(r.URL.Query().Get("top_k")); topK > 0 {
		opts.TopK = topK
	}

	vec, err := h.embedder.EmbedSingle(r.Context(), query)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	results, err := h.vectors.SimilaritySearch(r.Context(), vec, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}
