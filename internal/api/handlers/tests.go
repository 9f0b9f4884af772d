package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/harness"
	"github.com/promptforge/promptforge/internal/models"
	"github.com/promptforge/promptforge/internal/queue"
	"github.com/promptforge/promptforge/internal/version"
)

// TestStore is the persistence slice the test handler needs beyond
// what the harness owns.
type TestStore interface {
	GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error)
	ListTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error)
	ListTestResults(ctx context.Context, versionID uuid.UUID) ([]models.TestResult, error)
}

// BatchEnqueuer schedules background batch runs. Nil disables async.
type BatchEnqueuer interface {
	EnqueueTestRunExecute(payload queue.TestRunExecutePayload) error
}

type TestHandler struct {
	svc     *version.Service
	store   TestStore
	harness *harness.Harness
	tasks   BatchEnqueuer
}

func NewTestHandler(svc *version.Service, store TestStore, h *harness.Harness, tasks BatchEnqueuer) *TestHandler {
	return &TestHandler{svc: svc, store: store, harness: h, tasks: tasks}
}

type runTestRequest struct {
	TestCaseID uuid.UUID `json:"test_case_id"`
}

func (h *TestHandler) RunTest(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadVersion(w, r)
	if !ok {
		return
	}

	var req runTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	tc, err := h.store.GetTestCase(r.Context(), req.TestCaseID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.harness.RunTest(r.Context(), v, tc)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TestHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadVersion(w, r)
	if !ok {
		return
	}

	cases, err := h.store.ListTestCases(r.Context(), v.PromptID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(cases) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no test cases for this prompt"})
		return
	}

	run, err := h.harness.RunBatch(r.Context(), v, cases)
	if err != nil {
		// Partial results still come back on a failed batch.
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"error": err.Error(), "run": run})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *TestHandler) RunBatchAsync(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async execution not configured"})
		return
	}

	v, ok := h.loadVersion(w, r)
	if !ok {
		return
	}

	err := h.tasks.EnqueueTestRunExecute(queue.TestRunExecutePayload{
		PromptID:  v.PromptID.String(),
		VersionID: v.ID.String(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "version_id": v.ID.String()})
}

func (h *TestHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	results, err := h.store.ListTestResults(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.harness.Summarize(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "summary": summary})
}

type compareRequest struct {
	VersionIDs  []uuid.UUID `json:"version_ids"`
	TestCaseIDs []uuid.UUID `json:"test_case_ids"`
}

func (h *TestHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.VersionIDs) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least two version_ids required"})
		return
	}
	if len(req.TestCaseIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "test_case_ids required"})
		return
	}

	versions := make([]*models.PromptVersion, 0, len(req.VersionIDs))
	for _, id := range req.VersionIDs {
		v, err := h.svc.GetVersion(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		versions = append(versions, v)
	}

	cases := make([]models.TestCase, 0, len(req.TestCaseIDs))
	for _, id := range req.TestCaseIDs {
		tc, err := h.store.GetTestCase(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		cases = append(cases, *tc)
	}

	cmp, err := h.harness.Compare(r.Context(), versions, cases)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, cmp)
}

func (h *TestHandler) loadVersion(w http.ResponseWriter, r *http.Request) (*models.PromptVersion, bool) {
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
