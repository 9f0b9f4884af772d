package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptforge/promptforge/internal/embedding"
	"github.com/promptforge/promptforge/internal/models"
	"github.com/promptforge/promptforge/internal/queue"
	"github.com/promptforge/promptforge/internal/vectorstore"
)

type VersionStore interface {
	GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error)
}

type Vectors interface {
	Upsert(ctx context.Context, entries []vectorstore.Entry) error
}

// EmbedWorker embeds a version's content and stores the vector so the
// version becomes discoverable through semantic search.
type EmbedWorker struct {
	store    VersionStore
	embedder *embedding.Service
	vectors  Vectors
}

func NewEmbedWorker(store VersionStore, embedder *embedding.Service, vectors Vectors) *EmbedWorker {
	return &EmbedWorker{store: store, embedder: embedder, vectors: vectors}
}

func (w *EmbedWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.VersionEmbedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	promptID, err := uuid.Parse(payload.PromptID)
	if err != nil {
		return fmt.Errorf("parse prompt ID: %w", err)
	}
	versionID, err := uuid.Parse(payload.VersionID)
	if err != nil {
		return fmt.Errorf("parse version ID: %w", err)
	}

	version, err := w.store.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("load version: %w", err)
	}

	vec, err := w.embedder.EmbedSingle(ctx, version.Content)
	if err != nil {
		return fmt.Errorf("embed version content: %w", err)
	}

	err = w.vectors.Upsert(ctx, []vectorstore.Entry{{
		VersionID: versionID,
		PromptID:  promptID,
		Embedding: vec,
	}})
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}

	slog.Info("version embedded", "version_id", versionID)
	return nil
}
