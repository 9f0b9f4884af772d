package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/queue"
	"github.com/promptforge/promptforge/internal/version"
)

// Enqueuer is the task-production surface the prompt handler uses to
// schedule embedding of freshly created versions. Nil disables it.
type Enqueuer interface {
	EnqueueVersionEmbed(payload queue.VersionEmbedPayload) error
}

type PromptHandler struct {
	svc   *version.Service
	tasks Enqueuer
}

func NewPromptHandler(svc *version.Service, tasks Enqueuer) *PromptHandler {
	return &PromptHandler{svc: svc, tasks: tasks}
}

type createPromptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Note        string `json:"note"`
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return
	}

	p, v, err := h.svc.CreatePrompt(r.Context(), req.Name, req.Description, req.Content, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	h.scheduleEmbed(p.ID, v.ID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{"prompt": p, "version": v})
}

func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	prompts, err := h.svc.ListPrompts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": prompts, "count": len(prompts)})
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	p, versions, err := h.svc.GetPrompt(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"prompt": p, "versions": versions})
}

func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	if err := h.svc.DeletePrompt(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type newVersionRequest struct {
	Content         string     `json:"content"`
	Note            string     `json:"note"`
	ParentVersionID *uuid.UUID `json:"parent_version_id"`
}

func (h *PromptHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	var req newVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return
	}

	v, err := h.svc.CreateVersion(r.Context(), id, req.Content, req.Note, req.ParentVersionID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.scheduleEmbed(id, v.ID)

	writeJSON(w, http.StatusCreated, v)
}

func (h *PromptHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	versions, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions, "count": len(versions)})
}

type rollbackRequest struct {
	TargetVersionID uuid.UUID `json:"target_version_id"`
}

func (h *PromptHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TargetVersionID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_version_id required"})
		return
	}

	v, err := h.svc.Rollback(r.Context(), id, req.TargetVersionID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.scheduleEmbed(id, v.ID)

	writeJSON(w, http.StatusCreated, v)
}

// scheduleEmbed is fire-and-forget: a version that never gets a vector
// just stays invisible to semantic search.
func (h *PromptHandler) scheduleEmbed(promptID, versionID uuid.UUID) {
	if h.tasks == nil {
		return
	}
	_ = h.tasks.EnqueueVersionEmbed(queue.VersionEmbedPayload{
		PromptID:  promptID.String(),
		VersionID: versionID.String(),
	})
}
