package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/analysis"
	"github.com/promptforge/promptforge/internal/models"
	"github.com/promptforge/promptforge/internal/variant"
	"github.com/promptforge/promptforge/internal/version"
)

type VersionHandler struct {
	svc       *version.Service
	engine    *analysis.Engine
	generator *variant.Generator
}

func NewVersionHandler(svc *version.Service, engine *analysis.Engine, generator *variant.Generator) *VersionHandler {
	return &VersionHandler{svc: svc, engine: engine, generator: generator}
}

func (h *VersionHandler) Diff(w http.ResponseWriter, r *http.Request) {
	aID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}
	bID, err := uuid.Parse(chi.URLParam(r, "other"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	ops, err := h.svc.DiffVersions(r.Context(), aID, bID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"diff": ops})
}

type analyzeRequest struct {
	Dimension models.Dimension `json:"dimension"`
}

func (h *VersionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadVersion(w, r)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !req.Dimension.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown dimension"})
		return
	}

	report, err := h.engine.Analyze(r.Context(), v, req.Dimension)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *VersionHandler) AnalyzeComprehensive(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadVersion(w, r)
	if !ok {
		return
	}

	composite, dimensions, err := h.engine.AnalyzeComprehensive(r.Context(), v)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"composite":  composite,
		"dimensions": dimensions,
	})
}

func (h *VersionHandler) Analyses(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	reports, err := h.engine.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": reports, "count": len(reports)})
}

type variantsRequest struct {
	Axis  variant.Axis `json:"axis"`
	Count int          `json:"count"`
}

// Variants returns candidates without saving them; committing one is a
// normal createVersion call with the candidate's content.
func (h *VersionHandler) Variants(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadVersion(w, r)
	if !ok {
		return
	}

	req := variantsRequest{Axis: variant.AxisBalanced, Count: 3}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	candidates, err := h.generator.Generate(r.Context(), v, req.Axis, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"variants":    candidates,
		"commit_note": variant.CommitNote(req.Axis),
	})
}

func (h *VersionHandler) loadVersion(w http.ResponseWriter, r *http.Request) (*models.PromptVersion, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return nil, false
	}

	v, err := h.svc.GetVersion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return v, true
}
