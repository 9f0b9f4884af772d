package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/models"
)

// TestCaseStore is the persistence slice the test case handler needs.
type TestCaseStore interface {
	CreateTestCase(ctx context.Context, tc *models.TestCase) error
	ListTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error)
	DeleteTestCase(ctx context.Context, id uuid.UUID) error
}

type TestCaseHandler struct {
	store TestCaseStore
}

func NewTestCaseHandler(store TestCaseStore) *TestCaseHandler {
	return &TestCaseHandler{store: store}
}

type createTestCaseRequest struct {
	Name           string `json:"name"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Rubric         string `json:"rubric"`
}

func (h *TestCaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	var req createTestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Input == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and input required"})
		return
	}

	tc := &models.TestCase{
		PromptID:       promptID,
		Name:           req.Name,
		Input:          req.Input,
		ExpectedOutput: req.ExpectedOutput,
		Rubric:         req.Rubric,
	}
	if err := h.store.CreateTestCase(r.Context(), tc); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tc)
}

func (h *TestCaseHandler) List(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	cases, err := h.store.ListTestCases(r.Context(), promptID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"test_cases": cases, "count": len(cases)})
}

func (h *TestCaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid test case ID"})
		return
	}

	if err := h.store.DeleteTestCase(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
